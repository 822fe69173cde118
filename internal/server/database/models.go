package database

import (
	"time"

	"codepad/internal/core"
)

// Project is a stored project and its file tree.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Template    string    `json:"template"`
	Files       core.Tree `json:"files"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectUpdate holds the metadata fields a PATCH may change. Nil fields are
// left alone.
type ProjectUpdate struct {
	Name        *string
	Description *string
}

// Apply copies the set fields onto p.
func (u ProjectUpdate) Apply(p *Project) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalProjects int64 `json:"total_projects"`
	TotalFiles    int64 `json:"total_files"`
	StorageUsed   int64 `json:"storage_used"`
}
