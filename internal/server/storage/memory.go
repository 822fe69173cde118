package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"codepad/internal/core"
	"codepad/internal/server/database"
)

// MemoryStore keeps projects in process memory. Projects are copied in and
// out, so callers never share a record with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]database.Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]database.Project)}
}

func (m *MemoryStore) Create(_ context.Context, project *database.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	m.projects[project.ID] = *project
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*database.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, database.ErrProjectNotFound
	}
	return &p, nil
}

// List returns every project, oldest first.
func (m *MemoryStore) List(_ context.Context) ([]*database.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*database.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, &p)
	}
	sortProjects(out)
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, update database.ProjectUpdate) (*database.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, database.ErrProjectNotFound
	}
	update.Apply(&p)
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return &p, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return database.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *MemoryStore) LoadTree(_ context.Context, id string) (core.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return core.Tree{}, database.ErrProjectNotFound
	}
	return p.Files, nil
}

func (m *MemoryStore) SaveTree(_ context.Context, id string, tree core.Tree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return database.ErrProjectNotFound
	}
	p.Files = tree
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return nil
}

func sortProjects(ps []*database.Project) {
	slices.SortFunc(ps, func(a, b *database.Project) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
