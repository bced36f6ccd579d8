// Package bolt provides comic catalog storage in a bbolt database.
//
// Comics are JSON documents in the "comics" bucket and index entries are
// keyword keys in the "index" bucket, both keyed by the big-endian comic
// number. A save is one bbolt transaction, so a failed save cannot disturb
// the previously committed catalog.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/comics"
	bbolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketComics = []byte("comics")
	bucketIndex  = []byte("index")
)

// Ensure Store implements comics.Store at compile time.
var _ comics.Store = (*Store)(nil)

// Store implements comics.Store backed by bbolt.
type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Load reads the stored catalog and index. A fresh database loads as an
// empty snapshot.
func (s *Store) Load(ctx context.Context) (*comics.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := comics.NewSnapshot()
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketComics); b != nil {
			err := b.ForEach(func(k, v []byte) error {
				var c comics.Comic
				if err := json.Unmarshal(v, &c); err != nil {
					return comics.Wrapf(err, comics.EINTERNAL, "corrupt comic record %d", decodeNum(k))
				}
				if c.Num != decodeNum(k) {
					return comics.Errorf(comics.EINTERNAL, "comic record %d holds comic #%d", decodeNum(k), c.Num)
				}
				snap.Comics[c.Num] = &c
				return nil
			})
			if err != nil {
				return err
			}
		}
		if b := tx.Bucket(bucketIndex); b != nil {
			// Keys iterate in byte order, which is numeric order for
			// big-endian numbers. ParseKey copies out of the mmap.
			return b.ForEach(func(k, v []byte) error {
				snap.Index = append(snap.Index, comics.IndexEntry{
					Keywords: comics.ParseKey(string(v)),
					Num:      decodeNum(k),
				})
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces the stored catalog and index in one transaction. Comics
// already stored are left untouched since they never change.
func (s *Store) Save(ctx context.Context, snap *comics.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		cb, err := tx.CreateBucketIfNotExists(bucketComics)
		if err != nil {
			return err
		}

		var stale [][]byte
		err = cb.ForEach(func(k, _ []byte) error {
			if _, ok := snap.Comics[decodeNum(k)]; !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := cb.Delete(k); err != nil {
				return err
			}
		}

		for num, c := range snap.Comics {
			key := encodeNum(num)
			if cb.Get(key) != nil {
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal comic #%d: %w", num, err)
			}
			if err := cb.Put(key, data); err != nil {
				return err
			}
		}

		if tx.Bucket(bucketIndex) != nil {
			if err := tx.DeleteBucket(bucketIndex); err != nil {
				return err
			}
		}
		ib, err := tx.CreateBucket(bucketIndex)
		if err != nil {
			return err
		}
		for _, e := range snap.Index {
			if err := ib.Put(encodeNum(e.Num), []byte(e.Keywords.Key())); err != nil {
				return err
			}
		}

		// A canceled save rolls back.
		return ctx.Err()
	})
}

func encodeNum(num int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(num))
	return b
}

func decodeNum(b []byte) int {
	if len(b) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(b))
}
