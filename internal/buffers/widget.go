package buffers

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Handle identifies one editable document owned by a Widget.
type Handle uint64

// ErrDisposed is returned for operations on a handle that was disposed or
// never created.
var ErrDisposed = errors.New("buffer disposed")

// Widget is the text-editing component that owns the documents being edited.
//
// Change callbacks fire for every content change, including changes made
// through SetBufferContent. They are delivered on the goroutine that caused
// the change, before the changing call returns.
type Widget interface {
	CreateBuffer(content, language string) (Handle, error)
	SetBufferContent(h Handle, content string) error
	BufferContent(h Handle) (string, error)
	DisposeBuffer(h Handle) error
	OnContentChanged(h Handle, fn func(content string)) error
}

// Editor is a Widget that also takes user input.
type Editor interface {
	Widget
	Type(h Handle, content string) error
}

type document struct {
	content   string
	language  string
	listeners []func(string)
}

// MemoryWidget is an in-process Widget. Type stands in for a user typing
// into a document.
type MemoryWidget struct {
	mu   sync.Mutex
	next Handle
	docs map[Handle]*document
}

func NewMemoryWidget() *MemoryWidget {
	return &MemoryWidget{docs: make(map[Handle]*document)}
}

func (w *MemoryWidget) CreateBuffer(content, language string) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	w.docs[w.next] = &document{content: content, language: language}
	return w.next, nil
}

func (w *MemoryWidget) SetBufferContent(h Handle, content string) error {
	return w.set(h, content)
}

// Type replaces the content of h as if a user had edited it.
func (w *MemoryWidget) Type(h Handle, content string) error {
	return w.set(h, content)
}

func (w *MemoryWidget) set(h Handle, content string) error {
	w.mu.Lock()
	d, ok := w.docs[h]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("buffer %d: %w", h, ErrDisposed)
	}
	d.content = content
	listeners := slices.Clone(d.listeners)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(content)
	}
	return nil
}

func (w *MemoryWidget) BufferContent(h Handle) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[h]
	if !ok {
		return "", fmt.Errorf("buffer %d: %w", h, ErrDisposed)
	}
	return d.content, nil
}

// Language returns the language hint the buffer was created with.
func (w *MemoryWidget) Language(h Handle) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[h]
	if !ok {
		return "", fmt.Errorf("buffer %d: %w", h, ErrDisposed)
	}
	return d.language, nil
}

func (w *MemoryWidget) DisposeBuffer(h Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[h]; !ok {
		return fmt.Errorf("buffer %d: %w", h, ErrDisposed)
	}
	delete(w.docs, h)
	return nil
}

func (w *MemoryWidget) OnContentChanged(h Handle, fn func(string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[h]
	if !ok {
		return fmt.Errorf("buffer %d: %w", h, ErrDisposed)
	}
	d.listeners = append(d.listeners, fn)
	return nil
}

// Len returns the number of live buffers.
func (w *MemoryWidget) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.docs)
}
