package mock

import (
	"context"

	"github.com/fwojciec/comics"
)

// Compile-time interface verification.
var (
	_ comics.Resolver = (*Resolver)(nil)
	_ comics.Syncer   = (*Syncer)(nil)
)

// Resolver is a mock implementation of comics.Resolver.
type Resolver struct {
	ResolveFn func(ctx context.Context, req comics.Request) (*comics.Resolution, error)
}

func (r *Resolver) Resolve(ctx context.Context, req comics.Request) (*comics.Resolution, error) {
	return r.ResolveFn(ctx, req)
}

// Syncer is a mock implementation of comics.Syncer.
type Syncer struct {
	SyncFn func(ctx context.Context) (*comics.SyncReport, error)
}

func (s *Syncer) Sync(ctx context.Context) (*comics.SyncReport, error) {
	return s.SyncFn(ctx)
}
