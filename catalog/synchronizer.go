package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/comics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of comics fetched in parallel.
const DefaultConcurrency = 4

// Ensure Synchronizer implements comics.Syncer at compile time.
var _ comics.Syncer = (*Synchronizer)(nil)

// Synchronizer is the only writer of a Catalog. A pass fetches every comic
// newer than the local latest, saves the grown snapshot and then publishes
// it, so readers never see a catalog and index that disagree.
type Synchronizer struct {
	Catalog *Catalog
	Source  comics.Source
	Store   comics.Store

	// Concurrency limits parallel fetches. Defaults to DefaultConcurrency.
	Concurrency int

	// SkipMissing records comics the archive reports as not found (below
	// its latest number) in SyncReport.Skipped instead of failing the pass.
	SkipMissing bool

	// Logger receives invariant violations. Defaults to discarding.
	Logger *slog.Logger

	mu sync.Mutex
}

// NewSynchronizer creates a new Synchronizer.
func NewSynchronizer(catalog *Catalog, source comics.Source, store comics.Store) *Synchronizer {
	return &Synchronizer{
		Catalog: catalog,
		Source:  source,
		Store:   store,
	}
}

// Sync runs one pass. Nothing is persisted or published unless every
// pending comic was fetched and the new snapshot was saved.
func (s *Synchronizer) Sync(ctx context.Context) (*comics.SyncReport, error) {
	if !s.mu.TryLock() {
		return nil, comics.Errorf(comics.ECONFLICT, "sync already in progress")
	}
	defer s.mu.Unlock()

	begin := time.Now()
	current := s.Catalog.Snapshot()
	report := &comics.SyncReport{
		ID:       uuid.New().String(),
		Previous: current.Latest(),
	}

	latest, err := s.Source.Latest(ctx)
	if err != nil {
		return nil, unavailable(ctx, err, "failed to fetch latest comic number")
	}

	if latest <= report.Previous {
		if latest < report.Previous {
			s.logger().Warn("remote archive is behind local catalog",
				"sync", report.ID,
				"remote", latest,
				"local", report.Previous,
			)
		}
		report.Latest = report.Previous
		report.Duration = time.Since(begin)
		return report, nil
	}

	fetched, skipped, err := s.fetchRange(ctx, report.Previous+1, latest)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	for _, c := range fetched {
		if err := next.Insert(c); err != nil {
			s.logger().Error("invariant violation", "sync", report.ID, "num", c.Num, "err", err)
			return nil, err
		}
	}
	if err := next.Validate(); err != nil {
		s.logger().Error("invariant violation", "sync", report.ID, "err", err)
		return nil, err
	}

	if err := s.Store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save catalog: %w", err)
	}
	s.Catalog.publish(next)

	report.Updated = len(fetched)
	report.Skipped = skipped
	report.Latest = next.Latest()
	report.Duration = time.Since(begin)
	return report, nil
}

// Import merges comics from snap that are not yet in the catalog, keeping
// their index entries from snap. Comics already in the catalog are never
// replaced; their numbers are reported in SyncReport.Skipped. Every merged
// comic must validate, otherwise nothing is persisted or published.
// Returns ECONFLICT if a sync pass is in progress.
func (s *Synchronizer) Import(ctx context.Context, snap *comics.Snapshot) (*comics.SyncReport, error) {
	if !s.mu.TryLock() {
		return nil, comics.Errorf(comics.ECONFLICT, "sync already in progress")
	}
	defer s.mu.Unlock()

	begin := time.Now()
	current := s.Catalog.Snapshot()
	report := &comics.SyncReport{
		ID:       uuid.New().String(),
		Previous: current.Latest(),
	}

	imported := comics.Reconcile(snap)
	next := current.Clone()
	for _, entry := range imported.Index {
		if _, exists := current.Comic(entry.Num); exists {
			report.Skipped = append(report.Skipped, entry.Num)
			continue
		}
		c := imported.Comics[entry.Num]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := next.InsertEntry(c, entry); err != nil {
			return nil, err
		}
		report.Updated++
	}
	if err := next.Validate(); err != nil {
		s.logger().Error("invariant violation", "import", report.ID, "err", err)
		return nil, err
	}

	if report.Updated > 0 {
		if err := s.Store.Save(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to save catalog: %w", err)
		}
		s.Catalog.publish(next)
	}

	report.Latest = next.Latest()
	report.Duration = time.Since(begin)
	return report, nil
}

// fetchRange fetches comics first..last inclusive and returns them in
// ascending order. The first failure cancels the remaining fetches.
func (s *Synchronizer) fetchRange(ctx context.Context, first, last int) ([]*comics.Comic, []int, error) {
	n := last - first + 1
	results := make([]*comics.Comic, n)
	missing := make([]bool, n)

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range n {
		num := first + i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			c, err := s.Source.FetchComic(gctx, num)
			if err != nil {
				if s.SkipMissing && num < last && comics.ErrorCode(err) == comics.ENOTFOUND {
					missing[i] = true
					return nil
				}
				return unavailable(gctx, err, "failed to fetch comic #%d", num)
			}
			if c.Num != num {
				return comics.Errorf(comics.EINTERNAL, "requested comic #%d but received #%d", num, c.Num)
			}
			if err := c.Validate(); err != nil {
				return err
			}
			results[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("sync canceled: %w", ctx.Err())
		}
		return nil, nil, err
	}

	fetched := make([]*comics.Comic, 0, n)
	var skipped []int
	for i, c := range results {
		if missing[i] {
			skipped = append(skipped, first+i)
			continue
		}
		fetched = append(fetched, c)
	}
	return slices.Clip(fetched), skipped, nil
}

func (s *Synchronizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// unavailable wraps a remote failure as EUNAVAILABLE unless it already
// carries that code or the context ended.
func unavailable(ctx context.Context, err error, format string, args ...any) error {
	if ctx.Err() != nil {
		return fmt.Errorf("sync canceled: %w", ctx.Err())
	}
	if comics.ErrorCode(err) == comics.EUNAVAILABLE {
		return err
	}
	return comics.Wrapf(err, comics.EUNAVAILABLE, "%s, try again later", fmt.Sprintf(format, args...))
}
