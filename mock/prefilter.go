package mock

import (
	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/catalog"
)

var _ catalog.Prefilter = (*Prefilter)(nil)

// Prefilter is a mock implementation of catalog.Prefilter.
type Prefilter struct {
	MayMatchFn func(snap *comics.Snapshot, query comics.Keywords) bool
}

func (p *Prefilter) MayMatch(snap *comics.Snapshot, query comics.Keywords) bool {
	return p.MayMatchFn(snap, query)
}
