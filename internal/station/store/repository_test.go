package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (w widget) EntityKey() string { return w.ID }

type recordingObserver struct {
	inserted []string
	removed  []string
}

func (r *recordingObserver) AfterInsert(_ context.Context, w widget) {
	r.inserted = append(r.inserted, w.ID)
}

func (r *recordingObserver) AfterRemove(_ context.Context, w widget) {
	r.removed = append(r.removed, w.ID)
}

func TestRepositoryInsertGetRemove(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[widget]("widgets", NewMemoryBackend(), nil)

	w := widget{ID: "w1", Name: "first"}
	require.NoError(t, repo.Insert(ctx, w))

	got, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, w, got)

	require.NoError(t, repo.Remove(ctx, "w1"))
	_, err = repo.Get(ctx, "w1")
	require.ErrorIs(t, err, ErrNotFound)

	// Removing an already-absent entity is a no-op, not an error.
	require.NoError(t, repo.Remove(ctx, "w1"))
}

func TestRepositoryObserversEachSeeEveryCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[widget]("widgets", NewMemoryBackend(), nil)

	var order []string
	first := &recordingObserver{}
	second := &recordingObserver{}
	repo.AddObserver(first)
	repo.AddObserver(second)

	require.NoError(t, repo.Insert(ctx, widget{ID: "w1"}))
	require.NoError(t, repo.Insert(ctx, widget{ID: "w2"}))
	require.NoError(t, repo.Remove(ctx, "w1"))

	order = append(order, first.inserted...)
	require.Equal(t, []string{"w1", "w2"}, order)
	require.Equal(t, []string{"w1", "w2"}, second.inserted)
	require.Equal(t, []string{"w1"}, first.removed)
	require.Equal(t, []string{"w1"}, second.removed)
}

func TestRepositoryListIsSortedByKey(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[widget]("widgets", NewMemoryBackend(), nil)
	require.NoError(t, repo.Insert(ctx, widget{ID: "b"}))
	require.NoError(t, repo.Insert(ctx, widget{ID: "a"}))
	require.NoError(t, repo.Insert(ctx, widget{ID: "c"}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].ID)
	require.Equal(t, "b", all[1].ID)
	require.Equal(t, "c", all[2].ID)
}

func TestRepositoryCacheServesWithoutBackendHit(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	repo := NewRepository[widget]("widgets", backend, NewCache[widget](8))

	require.NoError(t, repo.Insert(ctx, widget{ID: "w1", Name: "cached"}))
	require.NoError(t, backend.Delete(ctx, "widgets", "w1"))

	got, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "cached", got.Name)
}

func TestIndexAddRemoveLookup(t *testing.T) {
	idx := NewIndex[string]()
	idx.Add("created", "r1")
	idx.Add("created", "r2")
	idx.Add("approved", "r3")

	require.ElementsMatch(t, []string{"r1", "r2"}, idx.Lookup("created"))
	require.ElementsMatch(t, []string{"r3"}, idx.Lookup("approved"))

	idx.Remove("created", "r1")
	require.ElementsMatch(t, []string{"r2"}, idx.Lookup("created"))

	idx.Remove("created", "r2")
	require.Empty(t, idx.Lookup("created"))
}

func TestUniqueIndexRejectsConflictingOwner(t *testing.T) {
	u := NewUniqueIndex[string]()
	require.NoError(t, u.Set("finance", "group-1"))

	err := u.Set("finance", "group-2")
	require.ErrorIs(t, err, ErrUniqueConflict)

	// Re-setting the same owner is idempotent.
	require.NoError(t, u.Set("finance", "group-1"))

	owner, ok := u.Lookup("finance")
	require.True(t, ok)
	require.Equal(t, "group-1", owner)

	u.Remove("finance")
	_, ok = u.Lookup("finance")
	require.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[widget](2)
	c.Put("a", widget{ID: "a"})
	c.Put("b", widget{ID: "b"})

	// Touch "a" so "b" becomes the least-recently-used entry.
	_, _ = c.Get("a")
	c.Put("c", widget{ID: "c"})

	_, ok := c.Get("b")
	require.False(t, ok)

	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}
