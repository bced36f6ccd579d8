// Package fs provides file-based storage for the comic catalog.
//
// A saved snapshot is a generation directory holding catalog.json and
// index.json. The CURRENT manifest names the live generation and carries
// checksums of both files; it is replaced with an atomic rename, so a save
// that fails at any step leaves the previous generation in place. Saves take
// an exclusive lock on the LOCK file and loads a shared one, so processes
// sharing a directory never remove a generation another one is using.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/comics"
	"github.com/gofrs/flock"
)

// File names within the store directory.
const (
	ManifestName = "CURRENT"
	CatalogName  = "catalog.json"
	IndexName    = "index.json"
	LockName     = "LOCK"

	generationPrefix = "gen-"
	lockRetryDelay   = 50 * time.Millisecond
)

// Ensure Store implements comics.Store at compile time.
var _ comics.Store = (*Store)(nil)

// Store implements comics.Store with JSON files in a directory.
type Store struct {
	dir string
}

// NewStore creates a new Store rooted at dir. The directory is created on
// the first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// manifest is the content of the CURRENT file.
type manifest struct {
	Generation string    `json:"generation"`
	Comics     int       `json:"comics"`
	Latest     int       `json:"latest"`
	CatalogSum string    `json:"catalogSum"`
	IndexSum   string    `json:"indexSum"`
	SavedAt    time.Time `json:"savedAt"`
}

// Load reads the generation named by the manifest. A store without a
// manifest loads as an empty snapshot.
func (s *Store) Load(ctx context.Context) (*comics.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(s.dir, ManifestName)); errors.Is(err, os.ErrNotExist) {
		return comics.NewSnapshot(), nil
	}

	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.readManifest()
	if errors.Is(err, os.ErrNotExist) {
		return comics.NewSnapshot(), nil
	} else if err != nil {
		return nil, err
	}

	genDir := filepath.Join(s.dir, m.Generation)
	catalogData, err := readChecked(filepath.Join(genDir, CatalogName), m.CatalogSum)
	if err != nil {
		return nil, err
	}
	indexData, err := readChecked(filepath.Join(genDir, IndexName), m.IndexSum)
	if err != nil {
		return nil, err
	}

	return Decode(catalogData, indexData)
}

// Save writes s as a new generation and then switches the manifest to it.
func (s *Store) Save(ctx context.Context, snap *comics.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	catalogData, indexData, err := Encode(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	previous, err := s.readManifest()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	genDir, err := os.MkdirTemp(s.dir, generationPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create generation directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(genDir)
		}
	}()

	if err := writeFileSync(filepath.Join(genDir, CatalogName), catalogData); err != nil {
		return err
	}
	if err := writeFileSync(filepath.Join(genDir, IndexName), indexData); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := manifest{
		Generation: filepath.Base(genDir),
		Comics:     snap.Len(),
		Latest:     snap.Latest(),
		CatalogSum: checksum(catalogData),
		IndexSum:   checksum(indexData),
		SavedAt:    time.Now().UTC(),
	}
	if err := s.writeManifest(m); err != nil {
		return err
	}
	committed = true

	s.removeStaleGenerations(m.Generation, previous)
	return nil
}

// lock waits for the store lock until ctx is done. Writers hold it
// exclusively from reading the previous manifest until cleanup.
func (s *Store) lock(ctx context.Context, exclusive bool) (unlock func(), err error) {
	fl := flock.New(filepath.Join(s.dir, LockName))
	var locked bool
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock store %s: %w", s.dir, err)
	}
	if !locked {
		return nil, comics.Errorf(comics.ECONFLICT, "store %s is locked by another process", s.dir)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *Store) readManifest() (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, comics.Wrapf(err, comics.EINTERNAL, "corrupt manifest in %s", s.dir)
	}
	if m.Generation == "" || strings.ContainsAny(m.Generation, `/\`) {
		return nil, comics.Errorf(comics.EINTERNAL, "manifest in %s names invalid generation %q", s.dir, m.Generation)
	}
	return &m, nil
}

// writeManifest replaces CURRENT atomically: write a temp file, sync it,
// rename it over the old manifest and sync the directory.
func (s *Store) writeManifest(m manifest) error {
	for _, name := range []string{CatalogName, IndexName} {
		if _, err := os.Stat(filepath.Join(s.dir, m.Generation, name)); err != nil {
			return fmt.Errorf("generation %s is incomplete: %w", m.Generation, err)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(s.dir, ManifestName+".tmp")
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, ManifestName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return syncDir(s.dir)
}

// removeStaleGenerations deletes every generation directory except current.
// It runs under the exclusive lock, so any other generation is either the
// previous one or a leftover of an interrupted save. Failures are ignored
// since stale generations are never read.
func (s *Store) removeStaleGenerations(current string, previous *manifest) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, generationPrefix) || name == current {
			continue
		}
		_ = os.RemoveAll(filepath.Join(s.dir, name))
	}
	if previous != nil && previous.Generation != current {
		_ = os.RemoveAll(filepath.Join(s.dir, previous.Generation))
	}
}

// Encode serializes a snapshot into the catalog file and index file formats:
// {"<num>": comic} and {"<keyword key>": "<num>"}.
func Encode(snap *comics.Snapshot) (catalogData, indexData []byte, err error) {
	catalog := make(map[string]*comics.Comic, snap.Len())
	for num, c := range snap.Comics {
		catalog[strconv.Itoa(num)] = c
	}
	index := make(map[string]string, len(snap.Index))
	for _, e := range snap.Index {
		index[e.Keywords.Key()] = strconv.Itoa(e.Num)
	}

	catalogData, err = json.Marshal(catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	indexData, err = json.Marshal(index)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return catalogData, indexData, nil
}

// Decode parses the catalog and index file formats. The index may be nil.
// The result is not reconciled; see comics.Reconcile.
func Decode(catalogData, indexData []byte) (*comics.Snapshot, error) {
	var catalog map[string]*comics.Comic
	if err := json.Unmarshal(catalogData, &catalog); err != nil {
		return nil, comics.Wrapf(err, comics.EINTERNAL, "corrupt catalog file")
	}

	snap := &comics.Snapshot{Comics: make(map[int]*comics.Comic, len(catalog))}
	for key, c := range catalog {
		if c == nil {
			continue
		}
		num, err := strconv.Atoi(key)
		if err != nil || num != c.Num {
			return nil, comics.Errorf(comics.EINTERNAL, "catalog key %q does not match comic #%d", key, c.Num)
		}
		snap.Comics[num] = c
	}

	if indexData == nil {
		return snap, nil
	}
	var index map[string]string
	if err := json.Unmarshal(indexData, &index); err != nil {
		return nil, comics.Wrapf(err, comics.EINTERNAL, "corrupt index file")
	}
	for key, value := range index {
		num, err := strconv.Atoi(value)
		if err != nil {
			return nil, comics.Errorf(comics.EINTERNAL, "index key %q refers to invalid number %q", key, value)
		}
		snap.Index = append(snap.Index, comics.IndexEntry{Keywords: comics.ParseKey(key), Num: num})
	}
	slices.SortFunc(snap.Index, func(a, b comics.IndexEntry) int {
		return a.Num - b.Num
	})
	return snap, nil
}

// Import reads a bare catalog file and, optionally, an index file into a
// reconciled snapshot. Missing index entries are derived from the catalog.
func Import(catalogPath, indexPath string) (*comics.Snapshot, error) {
	catalogData, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var indexData []byte
	if indexPath != "" {
		if indexData, err = os.ReadFile(indexPath); err != nil {
			return nil, fmt.Errorf("failed to read index file: %w", err)
		}
	}

	snap, err := Decode(catalogData, indexData)
	if err != nil {
		return nil, err
	}
	return comics.Reconcile(snap), nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func readChecked(path, sum string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if got := checksum(data); got != sum {
		return nil, comics.Errorf(comics.EINTERNAL, "checksum mismatch for %s: manifest %s, file %s", path, sum, got)
	}
	return data, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some platforms (Windows) cannot sync a directory; the rename has
	// already happened by then.
	_ = d.Sync()
	return nil
}
