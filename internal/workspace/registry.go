package workspace

import (
	"context"
	"errors"

	"codepad/internal/metrics"

	"github.com/puzpuzpuz/xsync/v4"
)

type loadCall struct {
	done chan struct{}
	ws   *Workspace
	err  error
}

// Registry holds the loaded workspace of every project in use.
type Registry struct {
	store      Store
	opts       Options
	workspaces *xsync.Map[string, *Workspace]
	loading    *xsync.Map[string, *loadCall]
}

// NewRegistry returns a registry loading trees from store. Each workspace
// gets its own editor; opts.Editor is ignored.
func NewRegistry(store Store, opts Options) *Registry {
	opts.Editor = nil
	return &Registry{
		store:      store,
		opts:       opts,
		workspaces: xsync.NewMap[string, *Workspace](),
		loading:    xsync.NewMap[string, *loadCall](),
	}
}

// Open returns the workspace for projectID, loading its tree on first use.
// Concurrent first calls share a single load.
func (r *Registry) Open(ctx context.Context, projectID string) (*Workspace, error) {
	if ws, ok := r.workspaces.Load(projectID); ok {
		return ws, nil
	}

	call := &loadCall{done: make(chan struct{})}
	if other, loaded := r.loading.LoadOrStore(projectID, call); loaded {
		select {
		case <-other.done:
			return other.ws, other.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if ws, ok := r.workspaces.Load(projectID); ok {
		call.ws = ws
	} else if tree, err := r.store.LoadTree(ctx, projectID); err != nil {
		call.err = err
	} else {
		call.ws = New(projectID, tree, r.store, r.opts)
		r.workspaces.Store(projectID, call.ws)
		metrics.SetWorkspacesOpen(r.workspaces.Size())
	}
	r.loading.Delete(projectID)
	close(call.done)
	return call.ws, call.err
}

// Lookup returns the workspace for projectID if it is loaded.
func (r *Registry) Lookup(projectID string) (*Workspace, bool) {
	return r.workspaces.Load(projectID)
}

// Evict shuts down and forgets the workspace for projectID. Unsaved changes
// are written first.
func (r *Registry) Evict(ctx context.Context, projectID string) error {
	ws, ok := r.workspaces.LoadAndDelete(projectID)
	if !ok {
		return nil
	}
	metrics.SetWorkspacesOpen(r.workspaces.Size())
	return ws.Shutdown(ctx)
}

// EvictAll shuts down every workspace.
func (r *Registry) EvictAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.ids() {
		if err := r.Evict(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Range calls fn for each loaded workspace until fn returns false.
func (r *Registry) Range(fn func(projectID string, ws *Workspace) bool) {
	r.workspaces.Range(fn)
}

func (r *Registry) Len() int {
	return r.workspaces.Size()
}

func (r *Registry) ids() []string {
	var ids []string
	r.workspaces.Range(func(id string, _ *Workspace) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
