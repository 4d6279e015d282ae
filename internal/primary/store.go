package primary

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/wormtable/internal/btree"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

var (
	ErrRowOrder    = errors.New("primary: row ids must be consecutive and increasing")
	ErrRowNotFound = errors.New("primary: row not found")
	ErrEmptyRow    = errors.New("primary: empty row")
	ErrTooManyRows = errors.New("primary: row number exceeds key range")
)

// Mode selects how an existing store is opened.
type Mode int

const (
	ReadOnly Mode = iota
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "read-only"
}

// Record is one packed row and its row number.
type Record struct {
	ID   uint64
	Data []byte
}

// Store maps row numbers to packed rows. Rows are only ever appended, in
// row order, so the tree underneath is built with its bulk append path.
type Store struct {
	tree *btree.Tree
	dir  string
	base string
	mode Mode
}

// Create makes a new empty store. It fails if one already exists.
func Create(dir, base string, cacheSize int64) (*Store, error) {
	t, err := btree.Create(dir, base, btree.Options{CacheSize: cacheSize})
	if err != nil {
		return nil, fmt.Errorf("primary: create %s: %w", base, err)
	}
	return &Store{tree: t, dir: dir, base: base, mode: Append}, nil
}

// Open opens an existing store. cacheSize only affects performance.
func Open(dir, base string, cacheSize int64, mode Mode) (*Store, error) {
	t, err := btree.Open(dir, base, btree.Options{CacheSize: cacheSize, ReadOnly: mode == ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("primary: open %s: %w", base, err)
	}
	slog.Debug("primary.open", "dir", dir, "base", base, "mode", mode, "rows", t.Len())
	return &Store{tree: t, dir: dir, base: base, mode: mode}, nil
}

func (s *Store) Close() error {
	return s.tree.Close()
}

func (s *Store) Dir() string  { return s.dir }
func (s *Store) Base() string { return s.base }
func (s *Store) Mode() Mode   { return s.mode }

// NumRows is the number of rows written. Row numbers are 0..NumRows-1.
func (s *Store) NumRows() uint64 { return s.tree.Len() }

// WriteBatch appends rows. Their ids must continue exactly from NumRows.
func (s *Store) WriteBatch(recs []Record) error {
	next := s.tree.Len()
	for _, rec := range recs {
		if rec.ID != next {
			return fmt.Errorf("%w: got row %d, want %d", ErrRowOrder, rec.ID, next)
		}
		if rec.ID > schema.MaxRowID {
			return fmt.Errorf("%w: %d", ErrTooManyRows, rec.ID)
		}
		if len(rec.Data) == 0 {
			return fmt.Errorf("%w: row %d", ErrEmptyRow, rec.ID)
		}
		if err := s.tree.Append(row.Key(rec.ID), rec.Data); err != nil {
			return fmt.Errorf("primary: write row %d: %w", rec.ID, err)
		}
		next++
	}
	if len(recs) > 0 {
		slog.Debug("primary.writeBatch",
			"base", s.base,
			"rows", len(recs),
			"first", recs[0].ID,
			"total", next,
		)
	}
	return nil
}

// Get returns the packed row with the given number.
func (s *Store) Get(id uint64) ([]byte, error) {
	v, err := s.tree.Get(row.Key(id))
	if errors.Is(err, btree.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrRowNotFound, id)
	}
	return v, err
}

// Scan returns a cursor positioned on row from.
func (s *Store) Scan(from uint64) *Cursor {
	return &Cursor{c: s.tree.Seek(row.Key(from))}
}

// ForEach calls fn for every row from row number from onwards, in row
// order, stopping at the first error.
func (s *Store) ForEach(from uint64, fn func(id uint64, packed []byte) error) error {
	cur := s.Scan(from)
	for cur.Next() {
		if err := fn(cur.ID(), cur.Row()); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Remove deletes every file of the store named base. The store must be
// closed.
func Remove(dir, base string) error {
	return btree.Drop(dir, base)
}

// Rename moves a closed store to a new base name.
func Rename(dir, oldBase, newBase string) error {
	return btree.Rename(dir, oldBase, newBase)
}

func Exists(dir, base string) (bool, error) {
	return btree.Exists(dir, base)
}
