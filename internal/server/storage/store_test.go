package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"codepad/internal/core"
	"codepad/internal/server/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(id string, created time.Time) *database.Project {
	return &database.Project{
		ID:        id,
		Name:      "site-" + id,
		Template:  "blank",
		Files:     core.NewTree(core.NewFile("index.html", "<p>"+id+"</p>")),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// testStoreContract exercises behavior every backend shares.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newProject("p1", base)))

		got, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "site-p1", got.Name)
		assert.True(t, got.CreatedAt.Equal(base))
		assert.Equal(t, []string{"index.html"}, got.Files.Files())

		assert.Error(t, s.Create(ctx, newProject("p1", base)), "duplicate id")
	})

	t.Run("missing project", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, database.ErrProjectNotFound)
		_, err = s.LoadTree(ctx, "nope")
		assert.ErrorIs(t, err, database.ErrProjectNotFound)
		assert.ErrorIs(t, s.SaveTree(ctx, "nope", core.Tree{}), database.ErrProjectNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "nope"), database.ErrProjectNotFound)
		_, err = s.Update(ctx, "nope", database.ProjectUpdate{})
		assert.ErrorIs(t, err, database.ErrProjectNotFound)
	})

	t.Run("list oldest first", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newProject("b", base.Add(time.Hour))))
		require.NoError(t, s.Create(ctx, newProject("a", base.Add(2*time.Hour))))
		require.NoError(t, s.Create(ctx, newProject("c", base)))

		list, err := s.List(ctx)
		require.NoError(t, err)
		var ids []string
		for _, p := range list {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"c", "b", "a"}, ids)
	})

	t.Run("update metadata", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newProject("p1", base)))

		name := "renamed"
		got, err := s.Update(ctx, "p1", database.ProjectUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.True(t, got.UpdatedAt.After(base))

		again, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", again.Name)
		assert.Equal(t, "blank", again.Template)
	})

	t.Run("save and load tree", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newProject("p1", base)))

		tree := core.NewTree(
			core.NewFolder("src", core.NewFile("app.js", "run()")),
			core.NewFolder("empty"),
		)
		require.NoError(t, s.SaveTree(ctx, "p1", tree))

		loaded, err := s.LoadTree(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, tree.Digest(), loaded.Digest())
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newProject("p1", base)))
		require.NoError(t, s.Delete(ctx, "p1"))
		_, err := s.Get(ctx, "p1")
		assert.True(t, errors.Is(err, database.ErrProjectNotFound))
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, newProject("p1", time.Now())))

		got, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		got.Name = "changed"

		again, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "site-p1", again.Name)
	})
}

func TestFileSystemStoreContract(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s := NewFileSystemStore(t.TempDir())
		require.NoError(t, s.EnsureDir())
		return s
	})
}
