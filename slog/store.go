package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/comics"
)

// Ensure LoggingStore implements comics.Store.
var _ comics.Store = (*LoggingStore)(nil)

// LoggingStore wraps a Store with logging.
type LoggingStore struct {
	next   comics.Store
	logger *slog.Logger
}

// NewLoggingStore creates a new LoggingStore.
func NewLoggingStore(next comics.Store, logger *slog.Logger) *LoggingStore {
	return &LoggingStore{next: next, logger: logger}
}

// Load delegates to the wrapped store and logs the operation.
func (s *LoggingStore) Load(ctx context.Context) (snap *comics.Snapshot, err error) {
	defer func(begin time.Time) {
		var n int
		if snap != nil {
			n = snap.Len()
		}
		s.logger.Debug("load catalog",
			"comics", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Load(ctx)
}

// Save delegates to the wrapped store and logs the operation.
func (s *LoggingStore) Save(ctx context.Context, snap *comics.Snapshot) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("save catalog",
			"comics", snap.Len(),
			"latest", snap.Latest(),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Save(ctx, snap)
}
