package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() Tree {
	return NewTree(
		NewFile("a.html", "<p>a</p>"),
		NewFile("b.css", "p{}"),
		NewFolder("src",
			NewFile("main.js", "main()"),
			NewFolder("lib", NewFile("util.js", "util()")),
		),
		NewFolder("assets"),
	)
}

func TestSplitPath(t *testing.T) {
	t.Run("valid paths", func(t *testing.T) {
		segs, err := SplitPath("src/lib/util.js")
		require.NoError(t, err)
		assert.Equal(t, []string{"src", "lib", "util.js"}, segs)

		segs, err = SplitPath("index.html")
		require.NoError(t, err)
		assert.Equal(t, []string{"index.html"}, segs)
	})

	t.Run("malformed paths", func(t *testing.T) {
		for _, p := range []string{"", "/a", "a/", "a//b", "a/./b", "../a", "/"} {
			_, err := SplitPath(p)
			assert.ErrorIs(t, err, ErrInvalidPath, p)
		}
	})

	t.Run("segments are case sensitive", func(t *testing.T) {
		tree := NewTree(NewFile("Index.html", ""))
		_, err := tree.Resolve("index.html")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "a", JoinPath("", "a"))
	assert.Equal(t, "a/b", JoinPath("a", "b"))

	dir, name := SplitParent("a/b/c.txt")
	assert.Equal(t, "a/b", dir)
	assert.Equal(t, "c.txt", name)

	dir, name = SplitParent("c.txt")
	assert.Equal(t, "", dir)
	assert.Equal(t, "c.txt", name)

	assert.True(t, Within("a", "a"))
	assert.True(t, Within("a/b", "a"))
	assert.False(t, Within("ab", "a"))
	assert.False(t, Within("a", "a/b"))
}

func TestResolve(t *testing.T) {
	tree := sampleTree()

	t.Run("root file", func(t *testing.T) {
		n, err := tree.Resolve("a.html")
		require.NoError(t, err)
		assert.Equal(t, "<p>a</p>", n.Content())
	})

	t.Run("nested file", func(t *testing.T) {
		n, err := tree.Resolve("src/lib/util.js")
		require.NoError(t, err)
		assert.Equal(t, "util.js", n.Name())
	})

	t.Run("folder", func(t *testing.T) {
		n, err := tree.Resolve("src/lib")
		require.NoError(t, err)
		assert.True(t, n.IsFolder())
	})

	t.Run("missing segment", func(t *testing.T) {
		_, err := tree.Resolve("src/nope/util.js")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("path through a file does not resolve", func(t *testing.T) {
		_, err := tree.Resolve("a.html/x")
		assert.ErrorIs(t, err, ErrNotFound)

		var pe *PathError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "resolve", pe.Op)
		assert.Equal(t, "a.html/x", pe.Path)
	})

	t.Run("malformed path", func(t *testing.T) {
		_, err := tree.Resolve("src//main.js")
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("empty tree", func(t *testing.T) {
		_, err := Tree{}.Resolve("a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResolveParent(t *testing.T) {
	tree := sampleTree()

	t.Run("root level has no parent node", func(t *testing.T) {
		parent, name, err := tree.ResolveParent("new.txt")
		require.NoError(t, err)
		assert.Nil(t, parent)
		assert.Equal(t, "new.txt", name)
	})

	t.Run("nested", func(t *testing.T) {
		parent, name, err := tree.ResolveParent("src/lib/new.js")
		require.NoError(t, err)
		assert.Equal(t, "lib", parent.Name())
		assert.Equal(t, "new.js", name)
	})

	t.Run("parent is a file", func(t *testing.T) {
		_, _, err := tree.ResolveParent("a.html/x")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, _, err := tree.ResolveParent("nope/x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
