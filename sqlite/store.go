package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fwojciec/comics"
)

// Compile-time interface verification.
var _ comics.Store = (*Store)(nil)

// Store implements comics.Store using SQLite. The index is kept in the
// keywords table, one row per comic.
type Store struct {
	db *DB
}

// NewStore creates a new Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Load reads every comic and index entry. An empty database loads as an
// empty snapshot.
func (s *Store) Load(ctx context.Context) (*comics.Snapshot, error) {
	snap := comics.NewSnapshot()

	rows, err := s.db.QueryContext(ctx, `
		SELECT num, safe_title, title, img, link, alt, year, month, day, transcript, news
		FROM comics
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query comics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c comics.Comic
		if err := rows.Scan(&c.Num, &c.SafeTitle, &c.Title, &c.Img, &c.Link, &c.Alt,
			&c.Year, &c.Month, &c.Day, &c.Transcript, &c.News); err != nil {
			return nil, fmt.Errorf("failed to scan comic: %w", err)
		}
		snap.Comics[c.Num] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keyRows, err := s.db.QueryContext(ctx, `SELECT num, key FROM keywords ORDER BY num`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer keyRows.Close()

	for keyRows.Next() {
		var (
			num int
			key string
		)
		if err := keyRows.Scan(&num, &key); err != nil {
			return nil, fmt.Errorf("failed to scan keywords: %w", err)
		}
		snap.Index = append(snap.Index, comics.IndexEntry{Keywords: comics.ParseKey(key), Num: num})
	}
	if err := keyRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// Save replaces the stored catalog and index in a single transaction.
// Comics already stored are left untouched since they never change.
func (s *Store) Save(ctx context.Context, snap *comics.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := storedNums(ctx, tx)
	if err != nil {
		return err
	}

	insertComic, err := tx.PrepareContext(ctx, `
		INSERT INTO comics (num, safe_title, title, img, link, alt, year, month, day, transcript, news)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insertComic.Close()

	for num, c := range snap.Comics {
		if stored[num] {
			delete(stored, num)
			continue
		}
		if _, err := insertComic.ExecContext(ctx, c.Num, c.SafeTitle, c.Title, c.Img, c.Link, c.Alt,
			c.Year, c.Month, c.Day, c.Transcript, c.News); err != nil {
			return fmt.Errorf("failed to insert comic #%d: %w", num, err)
		}
	}
	for num := range stored {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comics WHERE num = ?`, num); err != nil {
			return fmt.Errorf("failed to delete comic #%d: %w", num, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords`); err != nil {
		return fmt.Errorf("failed to clear keywords: %w", err)
	}
	insertKey, err := tx.PrepareContext(ctx, `INSERT INTO keywords (num, key) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertKey.Close()

	for _, e := range snap.Index {
		if _, err := insertKey.ExecContext(ctx, e.Num, e.Keywords.Key()); err != nil {
			return fmt.Errorf("failed to insert keywords for comic #%d: %w", e.Num, err)
		}
	}

	return tx.Commit()
}

func storedNums(ctx context.Context, tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT num FROM comics`)
	if err != nil {
		return nil, fmt.Errorf("failed to query comic numbers: %w", err)
	}
	defer rows.Close()

	nums := make(map[int]bool)
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			return nil, err
		}
		nums[num] = true
	}
	return nums, rows.Err()
}
