// Package workspace ties a project's file tree, its editor session and its
// editor buffers together and persists the tree in the background.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codepad/internal/buffers"
	"codepad/internal/core"
	"codepad/internal/metrics"
	"codepad/internal/session"
	"codepad/internal/util"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// ErrNotOpen is returned when editing a file that has no open tab.
var ErrNotOpen = errors.New("file is not open")

// Options configure a Workspace.
type Options struct {
	// Editor owns the workspace's buffers. A MemoryWidget is used when nil.
	Editor      buffers.Editor
	SaveTimeout time.Duration
}

// Snapshot is a copy of a workspace's observable state.
type Snapshot struct {
	ProjectID string       `json:"projectId"`
	Tree      core.Tree    `json:"tree"`
	Session   session.View `json:"session"`
	Digest    string       `json:"digest"`
	Dirty     bool         `json:"dirty"`
	Saved     uint64       `json:"savedGeneration"`
}

// Workspace is the single owner of one project's tree, session and buffers.
// Every exported method runs to completion under the workspace lock before
// the next one starts.
type Workspace struct {
	id     string
	editor buffers.Editor
	saver  *Saver
	logger zerolog.Logger

	mu      sync.Mutex
	tree    core.Tree
	state   session.State
	buffers *buffers.Cache
	dirty   bool
	closed  bool
	editErr error

	subID       uint64
	subscribers *xsync.Map[uint64, func(SaveResult)]
}

// New builds a workspace around tree and starts its saver.
func New(projectID string, tree core.Tree, store Store, opts Options) *Workspace {
	w := &Workspace{
		id:          projectID,
		editor:      opts.Editor,
		tree:        tree,
		state:       session.Initial(tree),
		logger:      util.GetLogger("workspace").With().Str("project_id", projectID).Logger(),
		subscribers: xsync.NewMap[uint64, func(SaveResult)](),
	}
	if w.editor == nil {
		w.editor = buffers.NewMemoryWidget()
	}
	w.buffers = buffers.NewCache(w.editor, w.applyEdit)
	w.saver = NewSaver(projectID, store, opts.SaveTimeout, w.notify)
	w.ensureActive()
	return w
}

func (w *Workspace) ID() string {
	return w.id
}

// Subscribe registers fn for save results and returns a function that
// removes it. fn runs on the saver goroutine.
func (w *Workspace) Subscribe(fn func(SaveResult)) (cancel func()) {
	w.mu.Lock()
	w.subID++
	id := w.subID
	w.mu.Unlock()

	w.subscribers.Store(id, fn)
	return func() { w.subscribers.Delete(id) }
}

func (w *Workspace) notify(r SaveResult) {
	w.subscribers.Range(func(_ uint64, fn func(SaveResult)) bool {
		fn(r)
		return true
	})
}

// Snapshot returns a copy of the current state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

func (w *Workspace) snapshot() Snapshot {
	return Snapshot{
		ProjectID: w.id,
		Tree:      w.tree,
		Session:   w.state.View(),
		Digest:    w.tree.Digest(),
		Dirty:     w.dirty,
		Saved:     w.saver.Saved(),
	}
}

// Tree returns the current tree.
func (w *Workspace) Tree() core.Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree
}

// Dirty reports whether the tree changed since the last save request.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

func (w *Workspace) CreateFile(parent, name, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createFile(parent, name, content)
}

func (w *Workspace) CreateFolder(parent, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createFolder(parent, name)
}

// Rename renames the node at p and returns its new path. Tabs, selection,
// expanded folders and buffers at or under p follow it.
func (w *Workspace) Rename(p, newName string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rename(p, newName)
}

// Move moves the node at p into newParent and returns its new path.
func (w *Workspace) Move(p, newParent string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.move(p, newParent)
}

func (w *Workspace) Delete(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delete(p)
}

func (w *Workspace) Open(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open(p)
}

// CloseTab closes the tab for p.
func (w *Workspace) CloseTab(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeTab(p)
}

func (w *Workspace) Activate(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activate(p)
}

func (w *Workspace) Select(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectPath(p)
}

// Edit applies content to p's buffer as user input. p must be open.
func (w *Workspace) Edit(p, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.edit(p, content)
}

// UpdateContent replaces the content of file p from outside the editor and
// pushes it into p's buffer, if any.
func (w *Workspace) UpdateContent(p, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updateContent(p, content)
}

// ReplaceTree swaps in a whole new tree, drops session entries that no
// longer resolve and queues a save.
func (w *Workspace) ReplaceTree(tree core.Tree) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.replaceTree(tree)
}

// Buffer returns the buffer content of open file p.
func (w *Workspace) Buffer(p string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return "", ErrClosed
	}
	if !w.state.IsOpen(p) {
		return "", &core.PathError{Op: "buffer", Path: p, Err: ErrNotOpen}
	}
	n, err := w.tree.Resolve(p)
	if err != nil {
		return "", err
	}
	if _, err := w.buffers.Ensure(p, n.Content()); err != nil {
		return "", err
	}
	content, _ := w.buffers.Content(p)
	return content, nil
}

// Save queues the current tree for writing and returns its generation.
func (w *Workspace) Save() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.save()
}

// SaveIfDirty saves only when the tree changed since the last request.
func (w *Workspace) SaveIfDirty() (uint64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty || w.closed {
		return 0, false, nil
	}
	gen, err := w.save()
	return gen, err == nil, err
}

// Flush waits until everything requested so far has been written and
// returns the result of the last write.
func (w *Workspace) Flush(ctx context.Context) error {
	gen := w.saver.Requested()
	if gen == 0 {
		return nil
	}
	return w.saver.Wait(ctx, gen)
}

// Shutdown disposes all buffers, writes unsaved changes and stops the saver.
func (w *Workspace) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	if w.dirty {
		if _, err := w.save(); err != nil {
			w.logger.Error().Err(err).Msg("final save request failed")
		}
	}
	w.closed = true
	w.buffers.EvictAll()
	w.mu.Unlock()

	err := w.saver.Close(ctx)
	w.logger.Debug().Err(err).Msg("workspace closed")
	return err
}

func (w *Workspace) save() (uint64, error) {
	gen, err := w.saver.Save(w.tree)
	if err != nil {
		return 0, err
	}
	w.dirty = false
	return gen, nil
}

// commit installs a new tree after a structural change and queues a save.
func (w *Workspace) commit(op string, tree core.Tree) {
	w.tree = tree
	w.dirty = true
	if _, err := w.save(); err != nil {
		w.logger.Error().Err(err).Str("op", op).Msg("save request failed")
	}
}

func (w *Workspace) createFile(parent, name, content string) error {
	if w.closed {
		return ErrClosed
	}
	tree, err := w.tree.Insert(parent, core.NewFile(name, content))
	metrics.RecordMutation("create_file", err)
	if err != nil {
		return err
	}
	w.commit("create_file", tree)
	return nil
}

func (w *Workspace) createFolder(parent, name string) error {
	if w.closed {
		return ErrClosed
	}
	tree, err := w.tree.Insert(parent, core.NewFolder(name))
	metrics.RecordMutation("create_folder", err)
	if err != nil {
		return err
	}
	w.commit("create_folder", tree)
	return nil
}

func (w *Workspace) rename(p, newName string) (string, error) {
	if w.closed {
		return "", ErrClosed
	}
	tree, newPath, err := w.tree.Rename(p, newName)
	metrics.RecordMutation("rename", err)
	if err != nil {
		return "", err
	}
	if newPath == p {
		return p, nil
	}
	w.buffers.Rename(p, newPath)
	w.state = w.state.Rename(p, newPath)
	w.commit("rename", tree)
	return newPath, nil
}

func (w *Workspace) move(p, newParent string) (string, error) {
	if w.closed {
		return "", ErrClosed
	}
	tree, newPath, err := w.tree.Move(p, newParent)
	metrics.RecordMutation("move", err)
	if err != nil {
		return "", err
	}
	if newPath == p {
		return p, nil
	}
	w.buffers.Rename(p, newPath)
	w.state = w.state.Rename(p, newPath)
	w.commit("move", tree)
	return newPath, nil
}

func (w *Workspace) delete(p string) error {
	if w.closed {
		return ErrClosed
	}
	tree, err := w.tree.Delete(p)
	metrics.RecordMutation("delete", err)
	if err != nil {
		return err
	}
	w.state = w.state.Remove(p)
	w.commit("delete", tree)
	w.syncBuffers()
	return nil
}

func (w *Workspace) open(p string) error {
	if w.closed {
		return ErrClosed
	}
	if err := w.requireFile("open", p); err != nil {
		return err
	}
	w.state = w.state.Open(p)
	w.syncBuffers()
	return nil
}

func (w *Workspace) closeTab(p string) error {
	if w.closed {
		return ErrClosed
	}
	w.state = w.state.Close(p)
	w.syncBuffers()
	return nil
}

func (w *Workspace) activate(p string) error {
	if w.closed {
		return ErrClosed
	}
	if !w.state.IsOpen(p) {
		return &core.PathError{Op: "activate", Path: p, Err: ErrNotOpen}
	}
	w.state = w.state.Activate(p)
	w.syncBuffers()
	return nil
}

func (w *Workspace) selectPath(p string) error {
	if w.closed {
		return ErrClosed
	}
	n, err := w.tree.Resolve(p)
	if err != nil {
		return err
	}
	w.state = w.state.Select(p, n.Kind())
	w.syncBuffers()
	return nil
}

func (w *Workspace) edit(p, content string) error {
	if w.closed {
		return ErrClosed
	}
	if !w.state.IsOpen(p) {
		return &core.PathError{Op: "edit", Path: p, Err: ErrNotOpen}
	}
	n, err := w.tree.Resolve(p)
	if err != nil {
		return err
	}
	h, err := w.buffers.Ensure(p, n.Content())
	if err != nil {
		return err
	}

	w.editErr = nil
	if err := w.editor.Type(h, content); err != nil {
		return fmt.Errorf("edit %s: %w", p, err)
	}
	return w.editErr
}

// applyEdit receives user edits from the buffer cache. The editor delivers
// them synchronously from within edit, so the workspace lock is held.
func (w *Workspace) applyEdit(p, content string) {
	if n, err := w.tree.Resolve(p); err == nil && !n.IsFolder() && n.Content() == content {
		return
	}
	tree, err := w.tree.SetContent(p, content)
	metrics.RecordMutation("edit", err)
	if err != nil {
		w.editErr = err
		w.logger.Warn().Err(err).Str("path", p).Msg("edit rejected")
		return
	}
	w.tree = tree
	w.dirty = true
}

func (w *Workspace) updateContent(p, content string) error {
	if w.closed {
		return ErrClosed
	}
	tree, err := w.tree.SetContent(p, content)
	metrics.RecordMutation("update_content", err)
	if err != nil {
		return err
	}
	if err := w.buffers.SyncIfExternallyChanged(p, content); err != nil {
		return err
	}
	w.tree = tree
	w.dirty = true
	return nil
}

func (w *Workspace) replaceTree(tree core.Tree) (uint64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	metrics.RecordMutation("replace", nil)
	w.tree = tree
	w.state = w.state.Prune(tree)
	if len(w.state.OpenTabs()) == 0 {
		w.state = session.Initial(tree)
	}
	w.syncBuffers()
	for _, p := range w.buffers.Paths() {
		n, err := tree.Resolve(p)
		if err != nil {
			continue
		}
		if err := w.buffers.SyncIfExternallyChanged(p, n.Content()); err != nil {
			w.logger.Warn().Err(err).Str("path", p).Msg("buffer sync failed")
		}
	}
	w.dirty = true
	return w.save()
}

func (w *Workspace) requireFile(op, p string) error {
	n, err := w.tree.Resolve(p)
	if err != nil {
		return err
	}
	if n.IsFolder() {
		return &core.PathError{Op: op, Path: p, Err: fmt.Errorf("%w: is a folder", core.ErrInvalidPath)}
	}
	return nil
}

// syncBuffers drops buffers of closed tabs and makes sure the active tab
// has one.
func (w *Workspace) syncBuffers() {
	w.buffers.Reconcile(w.state.OpenTabs())
	w.ensureActive()
}

func (w *Workspace) ensureActive() {
	active := w.state.ActiveTab()
	if active == "" {
		return
	}
	n, err := w.tree.Resolve(active)
	if err != nil {
		return
	}
	if _, err := w.buffers.Ensure(active, n.Content()); err != nil {
		w.logger.Warn().Err(err).Str("path", active).Msg("buffer create failed")
	}
}
