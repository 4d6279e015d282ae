// Package index builds and reads secondary indexes over the columns of a
// table.
//
// An index is a B+Tree whose keys are the comparable encoding of the
// indexed columns followed by the 5-byte row key, with empty values. It is
// built in one pass over the primary store, sorted externally when it does
// not fit in memory, bulk appended under a temporary name and renamed into
// place.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tuannm99/wormtable/internal/alias/util"
	"github.com/tuannm99/wormtable/internal/btree"
	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/primary"
	"github.com/tuannm99/wormtable/internal/schema"
)

const (
	metaSuffix  = ".index.json"
	buildPrefix = "__build_"
	nameSep     = "+"

	DefaultProgressInterval = 100
)

// ProgressFunc receives the number of rows processed so far.
type ProgressFunc func(processed uint64)

type Options struct {
	CacheSize      int64
	SortBufferSize int64
	// TempDir holds sort runs; the table directory when empty.
	TempDir string
}

// Source is the table an index reads from.
type Source struct {
	Dir     string
	Primary *primary.Store
	Schema  *schema.Schema
	Codec   *codec.Codec
	BuildID string
}

// Meta is persisted next to the index files.
type Meta struct {
	Name    string    `json:"name"`
	Columns []string  `json:"columns"`
	BuildID string    `json:"table_build_id"`
	Entries uint64    `json:"entries"`
	BuiltAt time.Time `json:"built_at"`
}

type Index struct {
	src  Source
	cols []*schema.Column
	name string
	opts Options

	tree *btree.Tree
	meta *Meta
}

// Name is the file name of the index over the named columns.
func Name(columns []string) string {
	return strings.Join(columns, nameSep)
}

func New(src Source, columns []string, opts Options) (*Index, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrBadName)
	}
	for _, n := range columns {
		if n == "" || strings.ContainsAny(n, nameSep+`./\`) || strings.HasPrefix(n, "__") {
			return nil, fmt.Errorf("%w: %q", ErrBadName, n)
		}
	}
	cols, err := src.Schema.Lookup(columns...)
	if err != nil {
		return nil, err
	}
	if w := maxKeySize(src.Schema, cols, src.Codec.Limits()); w > btree.MaxKeySize {
		return nil, fmt.Errorf("index: %s: %w: keys up to %d bytes, max %d",
			Name(columns), btree.ErrKeyTooLarge, w, btree.MaxKeySize)
	}
	return &Index{
		src:  src,
		cols: cols,
		name: Name(columns),
		opts: opts,
	}, nil
}

func (ix *Index) Name() string              { return ix.name }
func (ix *Index) Columns() []*schema.Column { return slices.Clone(ix.cols) }
func (ix *Index) IsOpen() bool              { return ix.tree != nil }

func (ix *Index) metaPath() string {
	return filepath.Join(ix.src.Dir, ix.name+metaSuffix)
}

// Built reports whether the index files exist.
func (ix *Index) Built() (bool, error) {
	if _, err := os.Stat(ix.metaPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Build scans the primary store and writes the index. progress, if not
// nil, is called every interval rows and once more with the total when the
// total is not a multiple of interval. On failure no index files are left
// behind.
func (ix *Index) Build(progress ProgressFunc, interval uint64) (err error) {
	if ok, err := ix.Built(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrExists, ix.name)
	}
	if interval == 0 {
		interval = DefaultProgressInterval
	}

	buildBase := buildPrefix + ix.name
	if err := btree.Drop(ix.src.Dir, buildBase); err != nil {
		return err
	}
	tempDir := ix.opts.TempDir
	if tempDir == "" {
		tempDir = ix.src.Dir
	}
	srt := newSorter(ix.opts.SortBufferSize, tempDir)
	defer func() {
		if cerr := srt.Close(); cerr != nil {
			slog.Warn("index.build.cleanup", "index", ix.name, "err", cerr)
		}
	}()

	start := time.Now()
	var processed uint64
	err = ix.src.Primary.ForEach(0, func(id uint64, packed []byte) error {
		key, err := appendRowKey(nil, ix.cols, packed, id)
		if err != nil {
			return fmt.Errorf("index: row %d: %w", id, err)
		}
		if err := srt.Add(key); err != nil {
			return err
		}
		processed++
		if progress != nil && processed%interval == 0 {
			progress(processed)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if progress != nil && (processed == 0 || processed%interval != 0) {
		progress(processed)
	}

	tree, err := btree.Create(ix.src.Dir, buildBase, btree.Options{CacheSize: ix.opts.CacheSize})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tree.Close()
			if derr := btree.Drop(ix.src.Dir, buildBase); derr != nil {
				slog.Warn("index.build.drop", "index", ix.name, "err", derr)
			}
		}
	}()

	if err = srt.Drain(func(key []byte) error { return tree.Append(key, nil) }); err != nil {
		return fmt.Errorf("index: %s: %w", ix.name, err)
	}
	entries := tree.Len()
	if err = tree.Close(); err != nil {
		return err
	}
	if err = btree.Rename(ix.src.Dir, buildBase, ix.name); err != nil {
		return err
	}

	names := make([]string, len(ix.cols))
	for i, c := range ix.cols {
		names[i] = c.Name()
	}
	m := &Meta{
		Name:    ix.name,
		Columns: names,
		BuildID: ix.src.BuildID,
		Entries: entries,
		BuiltAt: time.Now().UTC(),
	}
	if err = util.WriteJSON(ix.metaPath(), m); err != nil {
		_ = btree.Drop(ix.src.Dir, ix.name)
		return err
	}

	slog.Info("index.build.done",
		"index", ix.name,
		"entries", entries,
		"elapsed", time.Since(start),
	)
	return nil
}

// Open opens a built index for reading.
func (ix *Index) Open() error {
	if ix.tree != nil {
		return nil
	}
	var m Meta
	if err := util.ReadJSON(ix.metaPath(), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotBuilt, ix.name)
		}
		return err
	}
	if m.BuildID != ix.src.BuildID {
		return fmt.Errorf("%w: %s built for %s, table is %s", ErrStaleIndex, ix.name, m.BuildID, ix.src.BuildID)
	}
	tree, err := btree.Open(ix.src.Dir, ix.name, btree.Options{CacheSize: ix.opts.CacheSize, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("index: open %s: %w", ix.name, err)
	}
	ix.tree, ix.meta = tree, &m
	return nil
}

func (ix *Index) Close() error {
	if ix.tree == nil {
		return nil
	}
	err := ix.tree.Close()
	ix.tree = nil
	return err
}

// Meta returns the metadata of an open index.
func (ix *Index) Meta() (Meta, error) {
	if ix.meta == nil {
		return Meta{}, ErrNotOpen
	}
	return *ix.meta, nil
}

func (ix *Index) NumEntries() (uint64, error) {
	if ix.tree == nil {
		return 0, ErrNotOpen
	}
	return ix.tree.Len(), nil
}

// Drop closes the index and removes its files.
func (ix *Index) Drop() error {
	if err := ix.Close(); err != nil {
		return err
	}
	if err := btree.Drop(ix.src.Dir, ix.name); err != nil {
		return err
	}
	if err := os.Remove(ix.metaPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	slog.Info("index.drop", "index", ix.name)
	return nil
}

// EncodeBound encodes a prefix tuple of values for this index.
func (ix *Index) EncodeBound(values []any) ([]byte, error) {
	return EncodeBound(ix.src.Codec, ix.cols, values)
}

// Seek returns a cursor on the first entry whose key is >= key. A nil key
// starts at the first entry.
func (ix *Index) Seek(key []byte) (*btree.Cursor, error) {
	if ix.tree == nil {
		return nil, ErrNotOpen
	}
	if len(key) == 0 {
		return ix.tree.First(), nil
	}
	return ix.tree.Seek(key), nil
}

// List returns the metadata of every index built in dir.
func List(dir string) ([]Meta, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+metaSuffix))
	if err != nil {
		return nil, err
	}
	out := make([]Meta, 0, len(paths))
	for _, p := range paths {
		var m Meta
		if err := util.ReadJSON(p, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Meta) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
