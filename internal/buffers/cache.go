// Package buffers keeps one editable widget buffer per open file and keeps
// buffers and tree content in step without echoing changes back and forth.
package buffers

import (
	"fmt"
	"maps"
	"slices"

	"codepad/internal/core"
	"codepad/internal/metrics"
	"codepad/internal/util"

	"github.com/rs/zerolog"
)

// EditFunc receives a user edit of the buffer currently owned by path.
type EditFunc func(path, content string)

type entry struct {
	handle Handle
	// snapshot is the content last synced between buffer and tree.
	snapshot string
}

// Cache maps file paths to widget buffers.
//
// A Cache is not safe for concurrent use; its owner serializes calls. Every
// entry's path is an open tab of the owning session.
type Cache struct {
	widget  Widget
	onEdit  EditFunc
	entries map[string]*entry
	syncing bool
	logger  zerolog.Logger
}

func NewCache(widget Widget, onEdit EditFunc) *Cache {
	return &Cache{
		widget:  widget,
		onEdit:  onEdit,
		entries: make(map[string]*entry),
		logger:  util.GetLogger("buffers"),
	}
}

// Ensure returns the buffer for path, creating it with content and the
// language for path's extension when there is no live one.
func (c *Cache) Ensure(path, content string) (Handle, error) {
	if e, ok := c.entries[path]; ok {
		if _, err := c.widget.BufferContent(e.handle); err == nil {
			return e.handle, nil
		}
		delete(c.entries, path)
		metrics.BufferDisposed()
	}

	h, err := c.widget.CreateBuffer(content, core.LanguageFor(path))
	if err != nil {
		return 0, fmt.Errorf("create buffer for %s: %w", path, err)
	}
	if err := c.widget.OnContentChanged(h, func(text string) { c.changed(h, text) }); err != nil {
		c.widget.DisposeBuffer(h)
		return 0, fmt.Errorf("watch buffer for %s: %w", path, err)
	}
	c.entries[path] = &entry{handle: h, snapshot: content}
	metrics.BufferCreated()
	c.logger.Debug().Str("path", path).Uint64("handle", uint64(h)).Msg("buffer created")
	return h, nil
}

// changed handles a widget notification. The path is looked up from the
// handle at delivery time, so a buffer whose file was renamed reports under
// its new path.
func (c *Cache) changed(h Handle, content string) {
	if c.syncing {
		return
	}
	for path, e := range c.entries {
		if e.handle != h {
			continue
		}
		e.snapshot = content
		if c.onEdit != nil {
			c.onEdit(path, content)
		}
		return
	}
}

// SyncIfExternallyChanged pushes content into path's buffer when it differs
// from the last synced snapshot. It does nothing for paths without a buffer.
// A buffer disposed behind the cache's back is replaced by a new one holding
// content.
func (c *Cache) SyncIfExternallyChanged(path, content string) error {
	e, ok := c.entries[path]
	if !ok || e.snapshot == content {
		return nil
	}
	if _, err := c.widget.BufferContent(e.handle); err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("buffer lost, recreating")
		_, err := c.Ensure(path, content)
		return err
	}
	c.syncing = true
	err := c.widget.SetBufferContent(e.handle, content)
	c.syncing = false
	if err != nil {
		return fmt.Errorf("sync buffer for %s: %w", path, err)
	}
	e.snapshot = content
	return nil
}

// Rename moves buffers at or under oldPath to the matching paths under newPath.
func (c *Cache) Rename(oldPath, newPath string) {
	for _, p := range slices.Collect(maps.Keys(c.entries)) {
		if !core.Within(p, oldPath) {
			continue
		}
		e := c.entries[p]
		delete(c.entries, p)
		c.entries[newPath+p[len(oldPath):]] = e
	}
}

// Reconcile disposes every buffer whose path is not among openTabs.
func (c *Cache) Reconcile(openTabs []string) {
	for path := range c.entries {
		if !slices.Contains(openTabs, path) {
			c.dispose(path)
		}
	}
}

// EvictAll disposes every buffer.
func (c *Cache) EvictAll() {
	for path := range c.entries {
		c.dispose(path)
	}
}

func (c *Cache) dispose(path string) {
	e := c.entries[path]
	delete(c.entries, path)
	metrics.BufferDisposed()
	if err := c.widget.DisposeBuffer(e.handle); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("dispose buffer")
	}
}

// Handle returns the buffer for path, if any.
func (c *Cache) Handle(path string) (Handle, bool) {
	e, ok := c.entries[path]
	if !ok {
		return 0, false
	}
	return e.handle, true
}

// Content returns the current text of path's buffer.
func (c *Cache) Content(path string) (string, bool) {
	e, ok := c.entries[path]
	if !ok {
		return "", false
	}
	s, err := c.widget.BufferContent(e.handle)
	if err != nil {
		return "", false
	}
	return s, true
}

// Paths returns the paths holding a buffer, sorted.
func (c *Cache) Paths() []string {
	return slices.Sorted(maps.Keys(c.entries))
}

func (c *Cache) Len() int {
	return len(c.entries)
}
