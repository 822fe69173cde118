package buffers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type edit struct {
	path, content string
}

func newTestCache(t *testing.T) (*Cache, *MemoryWidget, *[]edit) {
	t.Helper()
	w := NewMemoryWidget()
	var edits []edit
	c := NewCache(w, func(path, content string) {
		edits = append(edits, edit{path, content})
	})
	return c, w, &edits
}

func TestEnsure(t *testing.T) {
	t.Run("creates once", func(t *testing.T) {
		c, w, _ := newTestCache(t)

		h1, err := c.Ensure("src/app.js", "let a")
		require.NoError(t, err)
		h2, err := c.Ensure("src/app.js", "ignored")
		require.NoError(t, err)

		assert.Equal(t, h1, h2)
		assert.Equal(t, 1, w.Len())
		content, err := w.BufferContent(h1)
		require.NoError(t, err)
		assert.Equal(t, "let a", content)
		lang, err := w.Language(h1)
		require.NoError(t, err)
		assert.Equal(t, "javascript", lang)
	})

	t.Run("recreates a buffer disposed behind its back", func(t *testing.T) {
		c, w, _ := newTestCache(t)

		h1, err := c.Ensure("index.html", "<p>")
		require.NoError(t, err)
		require.NoError(t, w.DisposeBuffer(h1))

		h2, err := c.Ensure("index.html", "<p>")
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
		assert.Equal(t, 1, w.Len())
	})
}

func TestUserEditRouting(t *testing.T) {
	c, w, edits := newTestCache(t)

	h, err := c.Ensure("a.css", "body{}")
	require.NoError(t, err)

	require.NoError(t, w.Type(h, "body{color:red}"))
	assert.Equal(t, []edit{{"a.css", "body{color:red}"}}, *edits)

	// After a rename the same buffer reports under its new path.
	c.Rename("a.css", "b.css")
	require.NoError(t, w.Type(h, "p{}"))
	assert.Equal(t, edit{"b.css", "p{}"}, (*edits)[1])

	// The edit became the snapshot, so syncing the same text is a no-op.
	require.NoError(t, c.SyncIfExternallyChanged("b.css", "p{}"))
	assert.Len(t, *edits, 2)
}

func TestSyncIfExternallyChanged(t *testing.T) {
	t.Run("pushes without reporting an edit", func(t *testing.T) {
		c, w, edits := newTestCache(t)
		h, err := c.Ensure("x.md", "# a")
		require.NoError(t, err)

		require.NoError(t, c.SyncIfExternallyChanged("x.md", "# b"))

		content, err := w.BufferContent(h)
		require.NoError(t, err)
		assert.Equal(t, "# b", content)
		assert.Empty(t, *edits)
	})

	t.Run("ignores paths without a buffer", func(t *testing.T) {
		c, w, _ := newTestCache(t)
		require.NoError(t, c.SyncIfExternallyChanged("nope.txt", "x"))
		assert.Equal(t, 0, w.Len())
	})

	t.Run("skips unchanged content", func(t *testing.T) {
		m := new(mockWidget)
		m.On("CreateBuffer", "same", "plaintext").Return(Handle(7), nil)
		m.On("OnContentChanged", Handle(7), mock.Anything).Return(nil)
		c := NewCache(m, nil)

		_, err := c.Ensure("notes.txt", "same")
		require.NoError(t, err)
		require.NoError(t, c.SyncIfExternallyChanged("notes.txt", "same"))

		m.AssertNotCalled(t, "SetBufferContent", mock.Anything, mock.Anything)
		m.AssertExpectations(t)
	})

	t.Run("reports widget failures", func(t *testing.T) {
		m := new(mockWidget)
		m.On("CreateBuffer", "a", "json").Return(Handle(1), nil)
		m.On("OnContentChanged", Handle(1), mock.Anything).Return(nil)
		m.On("BufferContent", Handle(1)).Return("a", nil)
		m.On("SetBufferContent", Handle(1), "b").Return(errors.New("widget gone"))
		c := NewCache(m, nil)

		_, err := c.Ensure("pkg.json", "a")
		require.NoError(t, err)
		err = c.SyncIfExternallyChanged("pkg.json", "b")
		assert.ErrorContains(t, err, "widget gone")
	})

	t.Run("recreates a buffer lost before syncing", func(t *testing.T) {
		c, w, edits := newTestCache(t)
		h1, err := c.Ensure("page.html", "<p>old</p>")
		require.NoError(t, err)
		require.NoError(t, w.DisposeBuffer(h1))

		require.NoError(t, c.SyncIfExternallyChanged("page.html", "<p>new</p>"))

		h2, ok := c.Handle("page.html")
		require.True(t, ok)
		assert.NotEqual(t, h1, h2)
		content, ok := c.Content("page.html")
		require.True(t, ok)
		assert.Equal(t, "<p>new</p>", content)
		assert.Equal(t, 1, w.Len())
		assert.Empty(t, *edits)
	})
}

func TestReconcile(t *testing.T) {
	c, w, _ := newTestCache(t)
	for _, p := range []string{"a.html", "b.css", "src/c.js"} {
		_, err := c.Ensure(p, "")
		require.NoError(t, err)
	}
	hb, _ := c.Handle("b.css")

	c.Reconcile([]string{"a.html", "src/c.js", "never-opened.md"})

	assert.Equal(t, []string{"a.html", "src/c.js"}, c.Paths())
	assert.Equal(t, 2, w.Len())
	_, err := w.BufferContent(hb)
	assert.ErrorIs(t, err, ErrDisposed)

	c.EvictAll()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, w.Len())
}

func TestDisposedBufferStopsReporting(t *testing.T) {
	c, w, edits := newTestCache(t)
	h, err := c.Ensure("a.js", "")
	require.NoError(t, err)

	c.Reconcile(nil)

	assert.ErrorIs(t, w.Type(h, "late"), ErrDisposed)
	assert.Empty(t, *edits)
}

func TestRenameFolder(t *testing.T) {
	c, _, _ := newTestCache(t)
	for _, p := range []string{"src/a.js", "src/lib/b.js", "srcx/c.js"} {
		_, err := c.Ensure(p, "")
		require.NoError(t, err)
	}

	c.Rename("src", "app")

	assert.Equal(t, []string{"app/a.js", "app/lib/b.js", "srcx/c.js"}, c.Paths())
}

type mockWidget struct {
	mock.Mock
}

func (m *mockWidget) CreateBuffer(content, language string) (Handle, error) {
	args := m.Called(content, language)
	return args.Get(0).(Handle), args.Error(1)
}

func (m *mockWidget) SetBufferContent(h Handle, content string) error {
	return m.Called(h, content).Error(0)
}

func (m *mockWidget) BufferContent(h Handle) (string, error) {
	args := m.Called(h)
	return args.String(0), args.Error(1)
}

func (m *mockWidget) DisposeBuffer(h Handle) error {
	return m.Called(h).Error(0)
}

func (m *mockWidget) OnContentChanged(h Handle, fn func(string)) error {
	return m.Called(h, fn).Error(0)
}
