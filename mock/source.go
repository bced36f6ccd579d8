package mock

import (
	"context"

	"github.com/fwojciec/comics"
)

var _ comics.Source = (*Source)(nil)

// Source is a mock implementation of comics.Source.
type Source struct {
	LatestFn     func(ctx context.Context) (int, error)
	FetchComicFn func(ctx context.Context, num int) (*comics.Comic, error)
}

func (s *Source) Latest(ctx context.Context) (int, error) {
	return s.LatestFn(ctx)
}

func (s *Source) FetchComic(ctx context.Context, num int) (*comics.Comic, error) {
	return s.FetchComicFn(ctx, num)
}
