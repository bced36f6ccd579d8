package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/catalog"
	"github.com/fwojciec/comics/fs"
	"github.com/fwojciec/comics/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archive returns a mock source serving the given comics. Numbers without a
// comic are reported as not found.
func archive(latest int, all ...*comics.Comic) *mock.Source {
	byNum := make(map[int]*comics.Comic, len(all))
	for _, c := range all {
		byNum[c.Num] = c
	}
	return &mock.Source{
		LatestFn: func(ctx context.Context) (int, error) {
			return latest, nil
		},
		FetchComicFn: func(ctx context.Context, num int) (*comics.Comic, error) {
			if c, ok := byNum[num]; ok {
				return c, nil
			}
			return nil, comics.Errorf(comics.ENOTFOUND, "comic #%d not found", num)
		},
	}
}

// memoryStore records saved snapshots.
func memoryStore() (*mock.Store, *[]*comics.Snapshot) {
	var saved []*comics.Snapshot
	var mu sync.Mutex
	return &mock.Store{
		LoadFn: func(ctx context.Context) (*comics.Snapshot, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(saved) == 0 {
				return comics.NewSnapshot(), nil
			}
			return saved[len(saved)-1], nil
		},
		SaveFn: func(ctx context.Context, s *comics.Snapshot) error {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, s)
			return nil
		},
	}, &saved
}

func TestSynchronizer_Sync(t *testing.T) {
	t.Parallel()

	t.Run("fetches new comics and publishes them", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(3, barrel(), treeRing(), island()), store)

		report, err := syncer.Sync(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, 2, report.Previous)
		assert.Equal(t, 3, report.Latest)
		assert.NotEmpty(t, report.ID)
		require.Len(t, *saved, 1)
		assert.Same(t, (*saved)[0], cat.Snapshot())

		snap := cat.Snapshot()
		require.NoError(t, snap.Validate())
		got, ok := snap.Comic(3)
		require.True(t, ok)
		assert.Equal(t, "Island (sketch)", got.SafeTitle)

		res, err := catalog.NewSelector(cat).Resolve(context.Background(), comics.ByQuery("island"))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Comic.Num)
		assert.Equal(t, comics.MatchSearched, res.Match)
	})

	t.Run("populates empty catalog from the first comic", func(t *testing.T) {
		t.Parallel()

		cat := catalog.New(nil)
		store, _ := memoryStore()
		var fetched atomic.Int32
		source := archive(3, barrel(), treeRing(), island())
		fetch := source.FetchComicFn
		source.FetchComicFn = func(ctx context.Context, num int) (*comics.Comic, error) {
			fetched.Add(1)
			return fetch(ctx, num)
		}
		syncer := catalog.NewSynchronizer(cat, source, store)

		report, err := syncer.Sync(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 3, report.Updated)
		assert.Equal(t, 0, report.Previous)
		assert.Equal(t, int32(3), fetched.Load())
		assert.Equal(t, catalog.Stats{Comics: 3, Entries: 3, Latest: 3}, cat.Stats())
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(3, barrel(), treeRing(), island()), store)

		_, err := syncer.Sync(context.Background())
		require.NoError(t, err)
		before := cat.Snapshot()

		report, err := syncer.Sync(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, report.Updated)
		assert.Equal(t, 3, report.Latest)
		assert.Len(t, *saved, 1)
		assert.Same(t, before, cat.Snapshot())
	})

	t.Run("remote behind local changes nothing", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(1, barrel()), store)
		before := cat.Snapshot()

		report, err := syncer.Sync(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, report.Updated)
		assert.Equal(t, 2, report.Latest)
		assert.Empty(t, *saved)
		assert.Same(t, before, cat.Snapshot())
	})

	t.Run("unreachable archive returns EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		source := &mock.Source{
			LatestFn: func(ctx context.Context) (int, error) {
				return 0, errors.New("connection refused")
			},
		}
		syncer := catalog.NewSynchronizer(cat, source, store)

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, comics.EUNAVAILABLE, comics.ErrorCode(err))
		assert.Contains(t, comics.ErrorMessage(err), "try again later")
		assert.Empty(t, *saved)
	})

	t.Run("failed fetch publishes nothing", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		source := archive(5, barrel(), treeRing(), island())
		fetch := source.FetchComicFn
		source.FetchComicFn = func(ctx context.Context, num int) (*comics.Comic, error) {
			if num == 3 {
				return fetch(ctx, num)
			}
			return nil, errors.New("connection reset")
		}
		syncer := catalog.NewSynchronizer(cat, source, store)
		before := cat.Snapshot()

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, comics.EUNAVAILABLE, comics.ErrorCode(err))
		assert.Empty(t, *saved)
		assert.Same(t, before, cat.Snapshot())
		assert.Equal(t, 2, cat.Stats().Comics)
	})

	t.Run("failed save publishes nothing", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store := &mock.Store{
			SaveFn: func(ctx context.Context, s *comics.Snapshot) error {
				return errors.New("disk full")
			},
		}
		syncer := catalog.NewSynchronizer(cat, archive(3, island()), store)

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, 2, cat.Stats().Latest)
	})

	t.Run("wrong comic from archive returns EINTERNAL", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		source := archive(3)
		source.FetchComicFn = func(ctx context.Context, num int) (*comics.Comic, error) {
			return treeRing(), nil
		}
		syncer := catalog.NewSynchronizer(cat, source, store)

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, comics.EINTERNAL, comics.ErrorCode(err))
		assert.Empty(t, *saved)
	})

	t.Run("invalid comic from archive is rejected", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		source := archive(3, &comics.Comic{Num: 3})
		syncer := catalog.NewSynchronizer(cat, source, store)

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, comics.EINVALID, comics.ErrorCode(err))
		assert.Empty(t, *saved)
	})

	t.Run("missing comic fails the pass by default", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(4, fourth()), store)

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Empty(t, *saved)
	})

	t.Run("missing comic is skipped when enabled", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, _ := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(4, fourth()), store)
		syncer.SkipMissing = true

		report, err := syncer.Sync(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, []int{3}, report.Skipped)
		assert.Equal(t, 4, report.Latest)
		require.NoError(t, cat.Snapshot().Validate())
	})

	t.Run("missing latest comic is never skipped", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, _ := memoryStore()
		syncer := catalog.NewSynchronizer(cat, archive(3), store)
		syncer.SkipMissing = true

		_, err := syncer.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, comics.EUNAVAILABLE, comics.ErrorCode(err))
		assert.Equal(t, 2, cat.Stats().Latest)
	})

	t.Run("concurrent pass returns ECONFLICT", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, _ := memoryStore()
		entered := make(chan struct{})
		release := make(chan struct{})
		source := archive(3, island())
		source.LatestFn = func(ctx context.Context) (int, error) {
			close(entered)
			<-release
			return 3, nil
		}
		syncer := catalog.NewSynchronizer(cat, source, store)

		done := make(chan error, 1)
		go func() {
			_, err := syncer.Sync(context.Background())
			done <- err
		}()
		<-entered

		_, err := syncer.Sync(context.Background())
		close(release)

		require.Error(t, err)
		assert.Equal(t, comics.ECONFLICT, comics.ErrorCode(err))
		require.NoError(t, <-done)
		assert.Equal(t, 3, cat.Stats().Latest)
	})

	t.Run("canceled context reports cancellation", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		source := archive(3, island())
		source.FetchComicFn = func(ctx context.Context, num int) (*comics.Comic, error) {
			cancel()
			return nil, ctx.Err()
		}
		syncer := catalog.NewSynchronizer(cat, source, store)

		_, err := syncer.Sync(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, *saved)
	})
}

func TestSynchronizer_FailedFetchLeavesFilesIntact(t *testing.T) {
	t.Parallel()

	// Given a catalog saved to disk
	dir := t.TempDir()
	store := fs.NewStore(dir)
	snap, err := comics.NewSnapshotFromComics(barrel(), treeRing())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), snap))
	before := readFiles(t, dir)

	cat, err := catalog.Open(context.Background(), store)
	require.NoError(t, err)

	// When a sync fails partway through fetching
	source := archive(4, island())
	syncer := catalog.NewSynchronizer(cat, source, store)
	_, err = syncer.Sync(context.Background())

	// Then every stored file is byte-identical and a reload sees the old catalog
	require.Error(t, err)
	assert.Equal(t, before, readFiles(t, dir))
	reopened, err := catalog.Open(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, catalog.Stats{Comics: 2, Entries: 2, Latest: 2}, reopened.Stats())
}

func TestSynchronizer_SyncedCatalogSurvivesReopen(t *testing.T) {
	t.Parallel()

	store := fs.NewStore(t.TempDir())
	cat, err := catalog.Open(context.Background(), store)
	require.NoError(t, err)

	_, err = catalog.NewSynchronizer(cat, archive(3, barrel(), treeRing(), island()), store).Sync(context.Background())
	require.NoError(t, err)

	reopened, err := catalog.Open(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, cat.Snapshot().Comics, reopened.Snapshot().Comics)
	assert.Equal(t, cat.Snapshot().Index, reopened.Snapshot().Index)
}

func fourth() *comics.Comic {
	return &comics.Comic{Num: 4, SafeTitle: "Landscape (sketch)", Img: "https://imgs.xkcd.com/comics/landscape_cropped_(1).jpg", Alt: "There's a river flowing through the ocean", Year: 2006, Month: 1, Day: 1}
}

func readFiles(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestSynchronizer_Import(t *testing.T) {
	t.Parallel()

	t.Run("merges only new comics", func(t *testing.T) {
		t.Parallel()

		// Given a catalog holding #1 and #2
		cat := scenarioCatalog(t)
		store, saved := memoryStore()
		syncer := catalog.NewSynchronizer(cat, nil, store)

		// When a snapshot with a changed #1 and a new #3 is imported
		changed := barrel()
		changed.SafeTitle = "Other title"
		imported, err := comics.NewSnapshotFromComics(changed, island())
		require.NoError(t, err)
		report, err := syncer.Import(context.Background(), imported)

		// Then only #3 is added and #1 keeps its title
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, []int{1}, report.Skipped)
		assert.Equal(t, 2, report.Previous)
		assert.Equal(t, 3, report.Latest)

		snap := cat.Snapshot()
		assert.Equal(t, 3, snap.Len())
		require.NoError(t, snap.Validate())
		got, ok := snap.Comic(1)
		require.True(t, ok)
		assert.Equal(t, "Barrel - Part 1", got.SafeTitle)

		require.Len(t, *saved, 1)
		assert.Same(t, snap, (*saved)[0])
	})

	t.Run("keeps imported index entries", func(t *testing.T) {
		t.Parallel()

		cat := catalog.New(nil)
		store, _ := memoryStore()
		entry := comics.IndexEntry{Keywords: comics.Keywords{"island", "sketch"}, Num: 3}
		imported := &comics.Snapshot{
			Comics: map[int]*comics.Comic{3: island()},
			Index:  comics.Index{entry},
		}

		_, err := catalog.NewSynchronizer(cat, nil, store).Import(context.Background(), imported)

		require.NoError(t, err)
		assert.Equal(t, comics.Index{entry}, cat.Snapshot().Index)
	})

	t.Run("nothing new saves nothing", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		before := cat.Snapshot()
		store, saved := memoryStore()
		imported, err := comics.NewSnapshotFromComics(barrel())
		require.NoError(t, err)

		report, err := catalog.NewSynchronizer(cat, nil, store).Import(context.Background(), imported)

		require.NoError(t, err)
		assert.Zero(t, report.Updated)
		assert.Empty(t, *saved)
		assert.Same(t, before, cat.Snapshot())
	})

	t.Run("invalid comic imports nothing", func(t *testing.T) {
		t.Parallel()

		cat := scenarioCatalog(t)
		before := cat.Snapshot()
		store, saved := memoryStore()
		broken := island()
		broken.Img = ""
		imported, err := comics.NewSnapshotFromComics(fourth(), broken)
		require.NoError(t, err)

		_, err = catalog.NewSynchronizer(cat, nil, store).Import(context.Background(), imported)

		require.Error(t, err)
		assert.Equal(t, comics.EINVALID, comics.ErrorCode(err))
		assert.Empty(t, *saved)
		assert.Same(t, before, cat.Snapshot())
	})
}
