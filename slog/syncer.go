package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/comics"
)

// Ensure LoggingSyncer implements comics.Syncer.
var _ comics.Syncer = (*LoggingSyncer)(nil)

// LoggingSyncer wraps a Syncer with logging.
type LoggingSyncer struct {
	next   comics.Syncer
	logger *slog.Logger
}

// NewLoggingSyncer creates a new LoggingSyncer.
func NewLoggingSyncer(next comics.Syncer, logger *slog.Logger) *LoggingSyncer {
	return &LoggingSyncer{next: next, logger: logger}
}

// Sync delegates to the wrapped syncer and logs the report.
func (s *LoggingSyncer) Sync(ctx context.Context) (report *comics.SyncReport, err error) {
	defer func(begin time.Time) {
		if err != nil {
			s.logger.Error("sync",
				"code", comics.ErrorCode(err),
				"duration", time.Since(begin),
				"err", err,
			)
			return
		}
		s.logger.Info("sync",
			"id", report.ID,
			"updated", report.Updated,
			"skipped", len(report.Skipped),
			"previous", report.Previous,
			"latest", report.Latest,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.Sync(ctx)
}
