package catalog

import (
	"context"
	"math/rand/v2"

	"github.com/fwojciec/comics"
)

// Ensure Selector implements comics.Resolver at compile time.
var _ comics.Resolver = (*Selector)(nil)

// Selector resolves requests against a Catalog.
type Selector struct {
	Catalog *Catalog

	// IntN returns a uniform random number in [0, n).
	// Defaults to math/rand/v2.IntN.
	IntN func(n int) int

	// Prefilter, if set, lets a query skip the index scan when none of its
	// keywords occur in the snapshot.
	Prefilter Prefilter
}

// Prefilter reports whether any keyword of a query may occur in a
// snapshot's index. It must never return false for a keyword that does.
type Prefilter interface {
	MayMatch(snap *comics.Snapshot, query comics.Keywords) bool
}

// NewSelector creates a new Selector.
func NewSelector(catalog *Catalog) *Selector {
	return &Selector{Catalog: catalog}
}

// Resolve returns the comic for req. A query that matches nothing, or that
// has no keywords left after normalization, falls back to a random comic.
func (s *Selector) Resolve(_ context.Context, req comics.Request) (*comics.Resolution, error) {
	snap := s.Catalog.Snapshot()

	switch req.Kind {
	case comics.RequestByID:
		c, ok := snap.Comic(req.Num)
		if !ok {
			return nil, comics.Errorf(comics.ENOTFOUND, "comic #%d not found", req.Num)
		}
		return &comics.Resolution{Comic: c, Match: comics.MatchExact}, nil

	case comics.RequestByQuery:
		if m, ok := s.findBest(snap, comics.Normalize(req.Query)); ok {
			c, found := snap.Comic(m.Num)
			if !found {
				return nil, comics.Errorf(comics.EINTERNAL, "index refers to missing comic #%d", m.Num)
			}
			return &comics.Resolution{
				Comic:    c,
				Match:    comics.MatchSearched,
				Strength: m.Strength,
				Query:    req.Query,
			}, nil
		}
		res, err := s.random(snap)
		if err != nil {
			return nil, err
		}
		res.Query = req.Query
		return res, nil

	case comics.RequestRandom:
		return s.random(snap)
	}

	return nil, comics.Errorf(comics.EINVALID, "unknown request kind %d", req.Kind)
}

func (s *Selector) findBest(snap *comics.Snapshot, query comics.Keywords) (comics.Match, bool) {
	if s.Prefilter != nil && !s.Prefilter.MayMatch(snap, query) {
		return comics.Match{}, false
	}
	return comics.FindBest(query, snap.Index)
}

func (s *Selector) random(snap *comics.Snapshot) (*comics.Resolution, error) {
	if len(snap.Index) == 0 {
		return nil, comics.Errorf(comics.EEMPTY, "catalog is empty, run a sync first")
	}
	intN := s.IntN
	if intN == nil {
		intN = rand.IntN
	}
	num := snap.Index[intN(len(snap.Index))].Num
	c, ok := snap.Comic(num)
	if !ok {
		return nil, comics.Errorf(comics.EINTERNAL, "index refers to missing comic #%d", num)
	}
	return &comics.Resolution{Comic: c, Match: comics.MatchRandom}, nil
}
