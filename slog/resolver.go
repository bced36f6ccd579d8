// Package slog provides logging decorators for the comics interfaces.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/comics"
)

// Ensure LoggingResolver implements comics.Resolver.
var _ comics.Resolver = (*LoggingResolver)(nil)

// LoggingResolver wraps a Resolver with logging.
type LoggingResolver struct {
	next   comics.Resolver
	logger *slog.Logger
}

// NewLoggingResolver creates a new LoggingResolver.
func NewLoggingResolver(next comics.Resolver, logger *slog.Logger) *LoggingResolver {
	return &LoggingResolver{next: next, logger: logger}
}

// Resolve delegates to the wrapped resolver and logs the outcome.
func (r *LoggingResolver) Resolve(ctx context.Context, req comics.Request) (res *comics.Resolution, err error) {
	defer func(begin time.Time) {
		attrs := []any{"kind", req.Kind.String()}
		switch req.Kind {
		case comics.RequestByID:
			attrs = append(attrs, "num", req.Num)
		case comics.RequestByQuery:
			attrs = append(attrs, "query", req.Query)
		}
		if res != nil {
			attrs = append(attrs, "match", string(res.Match), "comic", res.Comic.Num)
			if res.Fallback() {
				attrs = append(attrs, "fallback", true)
			}
		}
		attrs = append(attrs, "duration", time.Since(begin), "err", err)
		r.logger.Debug("resolve", attrs...)
	}(time.Now())
	return r.next.Resolve(ctx, req)
}
