package storage

import (
	"context"

	"codepad/internal/core"
	"codepad/internal/server/database"
)

// Store defines the interface for project storage backends. Missing
// projects are reported as database.ErrProjectNotFound by every backend.
type Store interface {
	Create(ctx context.Context, project *database.Project) error
	Get(ctx context.Context, id string) (*database.Project, error)
	List(ctx context.Context) ([]*database.Project, error)
	Update(ctx context.Context, id string, update database.ProjectUpdate) (*database.Project, error)
	Delete(ctx context.Context, id string) error
	LoadTree(ctx context.Context, id string) (core.Tree, error)
	SaveTree(ctx context.Context, id string, tree core.Tree) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileSystemStore)(nil)
	_ Store = (*database.Repository)(nil)
)
