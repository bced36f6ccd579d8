package comics

import (
	"context"
	"maps"
	"slices"
)

// IndexEntry maps the keyword set of a comic to its number.
type IndexEntry struct {
	Keywords Keywords `json:"keywords"`
	Num      int      `json:"num"`
}

// Index is the search index, ordered by comic number.
type Index []IndexEntry

// DeriveEntry builds the index entry of a comic from its title and alt text.
func DeriveEntry(c *Comic) IndexEntry {
	return IndexEntry{
		Keywords: Normalize(c.DisplayTitle() + " " + c.Alt),
		Num:      c.Num,
	}
}

// Snapshot is a consistent view of the catalog and its search index.
// A published snapshot must not be modified; writers work on a Clone.
type Snapshot struct {
	Comics map[int]*Comic
	Index  Index
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Comics: make(map[int]*Comic)}
}

// NewSnapshotFromComics builds a snapshot and derives its index from the
// given comics. Returns EINTERNAL if two comics share a number.
func NewSnapshotFromComics(comics ...*Comic) (*Snapshot, error) {
	s := NewSnapshot()
	for _, c := range comics {
		if err := s.Insert(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of comics.
func (s *Snapshot) Len() int {
	return len(s.Comics)
}

// Latest returns the highest comic number, or 0 for an empty snapshot.
func (s *Snapshot) Latest() int {
	if len(s.Index) > 0 {
		return s.Index[len(s.Index)-1].Num
	}
	var latest int
	for num := range s.Comics {
		latest = max(latest, num)
	}
	return latest
}

// Comic returns the comic with the given number.
func (s *Snapshot) Comic(num int) (*Comic, bool) {
	c, ok := s.Comics[num]
	return c, ok
}

// Clone returns a copy that can be modified without affecting s.
// Comics are shared since they are immutable.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Comics: maps.Clone(s.Comics),
		Index:  slices.Clone(s.Index),
	}
}

// Insert adds a comic together with its derived index entry.
// Returns EINTERNAL if the number is already present.
func (s *Snapshot) Insert(c *Comic) error {
	if _, exists := s.Comics[c.Num]; exists {
		return Errorf(EINTERNAL, "comic #%d already in catalog", c.Num)
	}
	if s.Comics == nil {
		s.Comics = make(map[int]*Comic)
	}
	s.Comics[c.Num] = c
	s.insertEntry(DeriveEntry(c))
	return nil
}

// InsertEntry adds a comic with an index entry loaded from elsewhere, such
// as an imported index file. Returns EINTERNAL if the number is already
// present or the entry belongs to another comic.
func (s *Snapshot) InsertEntry(c *Comic, entry IndexEntry) error {
	if entry.Num != c.Num {
		return Errorf(EINTERNAL, "index entry for comic #%d given with comic #%d", entry.Num, c.Num)
	}
	if _, exists := s.Comics[c.Num]; exists {
		return Errorf(EINTERNAL, "comic #%d already in catalog", c.Num)
	}
	if s.Comics == nil {
		s.Comics = make(map[int]*Comic)
	}
	s.Comics[c.Num] = c
	s.insertEntry(entry)
	return nil
}

func (s *Snapshot) insertEntry(entry IndexEntry) {
	if n := len(s.Index); n == 0 || s.Index[n-1].Num < entry.Num {
		s.Index = append(s.Index, entry)
		return
	}
	i, _ := slices.BinarySearchFunc(s.Index, entry.Num, func(e IndexEntry, num int) int {
		return e.Num - num
	})
	s.Index = slices.Insert(s.Index, i, entry)
}

// Validate returns EINTERNAL if the catalog and index are out of step:
// every comic must have exactly one entry and every entry a comic.
func (s *Snapshot) Validate() error {
	if len(s.Index) != len(s.Comics) {
		return Errorf(EINTERNAL, "catalog has %d comics but index has %d entries", len(s.Comics), len(s.Index))
	}
	for i, entry := range s.Index {
		if _, ok := s.Comics[entry.Num]; !ok {
			return Errorf(EINTERNAL, "index entry for unknown comic #%d", entry.Num)
		}
		if i > 0 && s.Index[i-1].Num >= entry.Num {
			return Errorf(EINTERNAL, "index out of order at comic #%d", entry.Num)
		}
	}
	return nil
}

// Reconcile rebuilds the index of s from the loaded index entries: entries
// for unknown comics are dropped, duplicates keep the first entry, and
// comics without an entry get a freshly derived one. The durable index is
// keyed by keyword set, so comics with identical sets share one stored entry
// and are restored here.
func Reconcile(s *Snapshot) *Snapshot {
	byNum := make(map[int]IndexEntry, len(s.Index))
	for _, entry := range s.Index {
		if _, ok := s.Comics[entry.Num]; !ok {
			continue
		}
		if _, dup := byNum[entry.Num]; dup {
			continue
		}
		byNum[entry.Num] = entry
	}

	out := &Snapshot{Comics: s.Comics, Index: make(Index, 0, len(s.Comics))}
	if out.Comics == nil {
		out.Comics = make(map[int]*Comic)
	}
	for _, num := range slices.Sorted(maps.Keys(out.Comics)) {
		entry, ok := byNum[num]
		if !ok {
			entry = DeriveEntry(out.Comics[num])
		}
		out.Index = append(out.Index, entry)
	}
	return out
}

// Store persists snapshots durably. Save must write the catalog and index as
// one unit: after a failed Save the previously saved snapshot is intact.
type Store interface {
	// Load returns the last saved snapshot, or an empty one if nothing has
	// been saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the durable snapshot.
	Save(ctx context.Context, s *Snapshot) error
}
