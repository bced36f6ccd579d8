// Package catalog owns the in-memory comic catalog and search index. It
// resolves lookups against the current snapshot and runs sync passes that
// replace it.
package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fwojciec/comics"
)

// Catalog holds the published snapshot. Readers never block; the
// Synchronizer swaps in a new snapshot once it has been persisted.
type Catalog struct {
	current atomic.Pointer[comics.Snapshot]
}

// New returns a Catalog serving s. A nil snapshot is treated as empty.
func New(s *comics.Snapshot) *Catalog {
	if s == nil {
		s = comics.NewSnapshot()
	}
	c := &Catalog{}
	c.current.Store(s)
	return c
}

// Open loads the last saved snapshot from store. The loaded index is
// reconciled with the catalog so every comic has exactly one entry.
func Open(ctx context.Context, store comics.Store) (*Catalog, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if s == nil {
		s = comics.NewSnapshot()
	}
	return New(comics.Reconcile(s)), nil
}

// Snapshot returns the current snapshot. It must be treated as read-only.
func (c *Catalog) Snapshot() *comics.Snapshot {
	return c.current.Load()
}

func (c *Catalog) publish(s *comics.Snapshot) {
	c.current.Store(s)
}

// Stats describes the size of the catalog.
type Stats struct {
	Comics  int `json:"comics"`
	Entries int `json:"entries"`
	Latest  int `json:"latest"`
}

// Stats returns the size of the current snapshot.
func (c *Catalog) Stats() Stats {
	s := c.Snapshot()
	return Stats{
		Comics:  s.Len(),
		Entries: len(s.Index),
		Latest:  s.Latest(),
	}
}
