package mock

import (
	"context"

	"github.com/fwojciec/comics"
)

var _ comics.Store = (*Store)(nil)

// Store is a mock implementation of comics.Store.
type Store struct {
	LoadFn func(ctx context.Context) (*comics.Snapshot, error)
	SaveFn func(ctx context.Context, s *comics.Snapshot) error
}

func (s *Store) Load(ctx context.Context) (*comics.Snapshot, error) {
	return s.LoadFn(ctx)
}

func (s *Store) Save(ctx context.Context, snap *comics.Snapshot) error {
	return s.SaveFn(ctx, snap)
}
