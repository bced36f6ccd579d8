package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/comics"
)

// Ensure LoggingSource implements comics.Source.
var _ comics.Source = (*LoggingSource)(nil)

// LoggingSource wraps a Source with debug logging of every remote call.
type LoggingSource struct {
	next   comics.Source
	logger *slog.Logger
}

// NewLoggingSource creates a new LoggingSource.
func NewLoggingSource(next comics.Source, logger *slog.Logger) *LoggingSource {
	return &LoggingSource{next: next, logger: logger}
}

// Latest delegates to the wrapped source and logs the operation.
func (s *LoggingSource) Latest(ctx context.Context) (latest int, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("fetch latest",
			"latest", latest,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Latest(ctx)
}

// FetchComic delegates to the wrapped source and logs the operation.
func (s *LoggingSource) FetchComic(ctx context.Context, num int) (c *comics.Comic, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("fetch comic",
			"num", num,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FetchComic(ctx, num)
}
