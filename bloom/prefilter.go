// Package bloom provides a Bloom filter over the keywords of a catalog
// snapshot, used to skip the index scan for queries that cannot match.
package bloom

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/comics"
)

// DefaultFalsePositiveRate is used when Prefilter.FalsePositiveRate is unset.
const DefaultFalsePositiveRate = 0.01

// Prefilter answers whether any query keyword may occur in a snapshot's
// index. False positives are possible; false negatives are not.
//
// The filter is built lazily for the most recently seen snapshot and rebuilt
// when a different snapshot is passed in.
type Prefilter struct {
	FalsePositiveRate float64

	mu     sync.Mutex
	snap   *comics.Snapshot
	filter *bloom.BloomFilter
}

// NewPrefilter creates a new Prefilter with the given false positive rate.
func NewPrefilter(fpRate float64) *Prefilter {
	return &Prefilter{FalsePositiveRate: fpRate}
}

// MayMatch returns false only if no keyword of query occurs in snap.Index.
func (p *Prefilter) MayMatch(snap *comics.Snapshot, query comics.Keywords) bool {
	if len(query) == 0 {
		return false
	}
	f := p.filterFor(snap)
	for _, k := range query {
		if f.TestString(k) {
			return true
		}
	}
	return false
}

func (p *Prefilter) filterFor(snap *comics.Snapshot) *bloom.BloomFilter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.filter != nil && p.snap == snap {
		return p.filter
	}

	var n uint
	for _, e := range snap.Index {
		n += uint(len(e.Keywords))
	}
	rate := p.FalsePositiveRate
	if rate <= 0 || rate >= 1 {
		rate = DefaultFalsePositiveRate
	}
	f := bloom.NewWithEstimates(max(n, 1), rate)
	for _, e := range snap.Index {
		for _, k := range e.Keywords {
			f.AddString(k)
		}
	}

	p.snap = snap
	p.filter = f
	return f
}

// EstimatedCount returns the approximate number of distinct keywords in the
// filter for the most recently seen snapshot.
func (p *Prefilter) EstimatedCount() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filter == nil {
		return 0
	}
	return uint(p.filter.ApproximatedSize())
}
