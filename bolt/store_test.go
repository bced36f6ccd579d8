package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*bolt.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "comics.db")
	store, err := bolt.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func testSnapshot(t *testing.T) *comics.Snapshot {
	t.Helper()
	snap, err := comics.NewSnapshotFromComics(
		&comics.Comic{Num: 1, SafeTitle: "Barrel - Part 1", Img: "https://imgs.xkcd.com/comics/barrel.jpg", Alt: "Don't we all.", Year: 2006, Month: 1, Day: 1},
		&comics.Comic{Num: 2, SafeTitle: "Tree Ring Calendar", Img: "https://imgs.xkcd.com/comics/tree.png", Alt: "Rings", Year: 2006, Month: 1, Day: 1},
	)
	require.NoError(t, err)
	return snap
}

func TestStore_LoadFreshDatabase(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	snap, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Empty(t, snap.Index)
}

func TestStore_SaveThenLoad(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	want := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want.Comics, got.Comics)
	assert.Equal(t, want.Index, got.Index)
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	want := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), want))
	require.NoError(t, store.Close())

	reopened, err := bolt.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Comics, got.Comics)
	assert.Equal(t, want.Index, got.Index)
}

func TestStore_IndexOrderedByNumber(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	snap := comics.NewSnapshot()
	for _, num := range []int{300, 2, 1000, 45} {
		require.NoError(t, snap.Insert(&comics.Comic{Num: num, SafeTitle: "Comic", Img: "c.png"}))
	}
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background())

	require.NoError(t, err)
	require.NoError(t, got.Validate())
	nums := make([]int, 0, len(got.Index))
	for _, e := range got.Index {
		nums = append(nums, e.Num)
	}
	assert.Equal(t, []int{2, 45, 300, 1000}, nums)
}

func TestStore_SaveRemovesMissingComics(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), testSnapshot(t)))
	smaller, err := comics.NewSnapshotFromComics(&comics.Comic{Num: 2, SafeTitle: "Tree Ring Calendar", Img: "tree.png"})
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), smaller))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Len(t, got.Index, 1)
	assert.Equal(t, 2, got.Latest())
}

func TestStore_CanceledSaveKeepsPreviousState(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	want := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), want))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := want.Clone()
	require.NoError(t, next.Insert(&comics.Comic{Num: 3, SafeTitle: "Island (sketch)", Img: "island.jpg"}))
	err := store.Save(ctx, next)

	require.ErrorIs(t, err, context.Canceled)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Comics, got.Comics)
	assert.Equal(t, want.Index, got.Index)
}
