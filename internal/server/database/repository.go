package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codepad/internal/core"

	"github.com/jackc/pgx/v5"
)

var (
	ErrProjectNotFound = errors.New("project not found")
)

const projectColumns = `id, name, description, template, files, created_at, updated_at`

// Repository provides CRUD operations for projects.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new project record.
func (r *Repository) Create(ctx context.Context, project *Project) error {
	files, err := json.Marshal(project.Files)
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		project.ID,
		project.Name,
		project.Description,
		project.Template,
		files,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// Get retrieves a project by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*Project, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List returns every project, oldest first.
func (r *Repository) List(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Update changes project metadata and returns the updated project.
func (r *Repository) Update(ctx context.Context, id string, update ProjectUpdate) (*Project, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE projects SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = $4
		WHERE id = $1
		RETURNING `+projectColumns,
		id, update.Name, update.Description, time.Now().UTC(),
	)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete removes a project record by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// LoadTree returns only the file tree of a project.
func (r *Repository) LoadTree(ctx context.Context, id string) (core.Tree, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, "SELECT files FROM projects WHERE id = $1", id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Tree{}, ErrProjectNotFound
		}
		return core.Tree{}, fmt.Errorf("failed to load files: %w", err)
	}
	var tree core.Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return core.Tree{}, fmt.Errorf("failed to decode files of %s: %w", id, err)
	}
	return tree, nil
}

// SaveTree replaces the file tree of a project.
func (r *Repository) SaveTree(ctx context.Context, id string, tree core.Tree) error {
	files, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE projects SET files = $2, updated_at = $3 WHERE id = $1",
		id, files, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// GetStats returns aggregate server statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(jsonb_array_length(jsonb_path_query_array(files, 'strict $.** ? (@.type == "file")'))), 0),
			COALESCE(SUM(octet_length(files::text)), 0)
		FROM projects
	`).Scan(
		&stats.TotalProjects,
		&stats.TotalFiles,
		&stats.StorageUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func scanProject(row pgx.Row) (*Project, error) {
	project := &Project{}
	var (
		description *string
		files       []byte
	)
	if err := row.Scan(
		&project.ID,
		&project.Name,
		&description,
		&project.Template,
		&files,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description != nil {
		project.Description = *description
	}
	if err := json.Unmarshal(files, &project.Files); err != nil {
		return nil, fmt.Errorf("decode files of %s: %w", project.ID, err)
	}
	return project, nil
}

// HealthCheck verifies the database behind the repository is reachable.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
