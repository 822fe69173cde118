package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codepad/internal/core"
	"codepad/internal/server/database"
)

// FileSystemStore stores each project as one JSON document on the local
// filesystem.
type FileSystemStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

func (fs *FileSystemStore) Create(_ context.Context, project *database.Project) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := os.Stat(fs.filePath(project.ID)); err == nil {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	return fs.write(project)
}

func (fs *FileSystemStore) Get(_ context.Context, id string) (*database.Project, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.read(id)
}

// List returns every project, oldest first. Files that fail to decode are
// reported as an error rather than skipped.
func (fs *FileSystemStore) List(_ context.Context) ([]*database.Project, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", fs.basePath, err)
	}

	var projects []*database.Project
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() {
			continue
		}
		p, err := fs.read(id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

func (fs *FileSystemStore) Update(_ context.Context, id string, update database.ProjectUpdate) (*database.Project, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, err := fs.read(id)
	if err != nil {
		return nil, err
	}
	update.Apply(p)
	p.UpdatedAt = time.Now().UTC()
	if err := fs.write(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the stored document for a project.
func (fs *FileSystemStore) Delete(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.Remove(fs.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return database.ErrProjectNotFound
		}
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

func (fs *FileSystemStore) LoadTree(_ context.Context, id string) (core.Tree, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	p, err := fs.read(id)
	if err != nil {
		return core.Tree{}, err
	}
	return p.Files, nil
}

func (fs *FileSystemStore) SaveTree(_ context.Context, id string, tree core.Tree) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, err := fs.read(id)
	if err != nil {
		return err
	}
	p.Files = tree
	p.UpdatedAt = time.Now().UTC()
	return fs.write(p)
}

func (fs *FileSystemStore) read(id string) (*database.Project, error) {
	if !core.ValidName(id) {
		return nil, database.ErrProjectNotFound
	}
	data, err := os.ReadFile(fs.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, database.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}
	p := &database.Project{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	return p, nil
}

// write stores p through a temporary file so a crash never leaves a
// half-written document behind.
func (fs *FileSystemStore) write(p *database.Project) error {
	if !core.ValidName(p.ID) {
		return fmt.Errorf("invalid project id %q", p.ID)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", p.ID, err)
	}

	tmp, err := os.CreateTemp(fs.basePath, p.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file for %s: %w", p.ID, err)
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), fs.filePath(p.ID))
	}
	if err != nil {
		// Clean up partial file on error
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write project %s: %w", p.ID, err)
	}
	return nil
}

func (fs *FileSystemStore) filePath(id string) string {
	return filepath.Join(fs.basePath, id+".json")
}
