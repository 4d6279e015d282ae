package wormtable

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tuannm99/wormtable/internal/alias/util"
	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/iterator"
	"github.com/tuannm99/wormtable/internal/primary"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
	"github.com/tuannm99/wormtable/internal/storage"
	"github.com/tuannm99/wormtable/internal/writer"
)

const (
	SchemaFile = "schema.xml"
	MetaFile   = "table.meta.json"

	primaryBase      = "primary"
	buildPrimaryBase = "__build_primary"
)

var (
	ErrTableExists   = errors.New("wormtable: table already exists")
	ErrNoTable       = errors.New("wormtable: no table")
	ErrNotOpen       = errors.New("wormtable: builder is not open")
	ErrTableClosed   = errors.New("wormtable: table is closed")
	ErrRowOutOfRange = errors.New("wormtable: row out of range")
)

// TableMeta is persisted as table.meta.json when a build is finalised.
type TableMeta struct {
	BuildID    string        `json:"build_id"`
	NumRows    uint64        `json:"num_rows"`
	Limits     schema.Limits `json:"limits"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// TableBuilder writes a new table into an empty home directory. Rows are
// written under a temporary name and become visible to OpenTable only after
// Finalise.
type TableBuilder struct {
	home   string
	schema *schema.Schema
	opts   Options
	codec  *codec.Codec

	store   *primary.Store
	w       *writer.Writer
	created time.Time
	// rows written by the last Finalise
	finalised uint64
}

func NewTableBuilder(home string, s *schema.Schema, opts Options) *TableBuilder {
	return &TableBuilder{home: home, schema: s, opts: opts.withDefaults()}
}

// Open prepares the home directory for writing. A leftover unfinished
// build is discarded; a finished table is never overwritten.
func (b *TableBuilder) Open() error {
	if b.store != nil {
		return nil
	}
	if err := b.opts.Limits.Validate(); err != nil {
		return err
	}
	if b.schema.FixedRegionSize() > b.opts.Limits.MaxRowSize {
		return fmt.Errorf("%w: fixed region %d > %d", ErrRowTooLarge, b.schema.FixedRegionSize(), b.opts.Limits.MaxRowSize)
	}
	if err := os.MkdirAll(b.home, storage.FileMode0755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(b.home, SchemaFile)); err == nil {
		return fmt.Errorf("%w: %s", ErrTableExists, b.home)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cd, err := codec.New(b.opts.Limits)
	if err != nil {
		return err
	}
	if err := primary.Remove(b.home, buildPrimaryBase); err != nil {
		return err
	}
	store, err := primary.Create(b.home, buildPrimaryBase, b.opts.CacheSize)
	if err != nil {
		return err
	}
	w, err := writer.New(store, b.schema, cd, b.opts.writerConfig())
	if err != nil {
		_ = store.Close()
		return err
	}
	b.codec, b.store, b.w = cd, store, w
	b.created = time.Now().UTC()

	slog.Info("table.build.open",
		"home", b.home,
		"columns", b.schema.NumColumns(),
		"cacheSize", b.opts.CacheSize,
	)
	return nil
}

func (b *TableBuilder) Schema() *Schema { return b.schema }

func (b *TableBuilder) InsertElements(c *Column, v any) error {
	if b.w == nil {
		return ErrNotOpen
	}
	return b.w.InsertElements(c, v)
}

func (b *TableBuilder) InsertEncodedElements(c *Column, text []byte) error {
	if b.w == nil {
		return ErrNotOpen
	}
	return b.w.InsertEncodedElements(c, text)
}

func (b *TableBuilder) CommitRow() error {
	if b.w == nil {
		return ErrNotOpen
	}
	return b.w.CommitRow()
}

func (b *TableBuilder) Flush() error {
	if b.w == nil {
		return ErrNotOpen
	}
	return b.w.Flush()
}

// NumRows counts committed rows, flushed or not. After Finalise it is the
// size of the finished table.
func (b *TableBuilder) NumRows() uint64 {
	if b.w == nil {
		return b.finalised
	}
	return b.w.NumRows()
}

// Finalise flushes the remaining rows, moves the primary store into place
// and writes the schema and table meta. The builder is closed afterwards.
func (b *TableBuilder) Finalise() error {
	if b.w == nil {
		return ErrNotOpen
	}
	if err := b.w.Flush(); err != nil {
		return err
	}
	n := b.w.NumRows()
	err := b.store.Close()
	b.store, b.w = nil, nil
	if err != nil {
		return err
	}
	if err := primary.Remove(b.home, primaryBase); err != nil {
		return err
	}
	if err := primary.Rename(b.home, buildPrimaryBase, primaryBase); err != nil {
		return err
	}

	meta := TableMeta{
		BuildID:    uuid.NewString(),
		NumRows:    n,
		Limits:     b.opts.Limits,
		CreatedAt:  b.created,
		FinishedAt: time.Now().UTC(),
	}
	if err := util.WriteJSON(filepath.Join(b.home, MetaFile), meta); err != nil {
		return err
	}
	// schema.xml is written last; its presence marks a finished table.
	if err := b.schema.WriteFile(filepath.Join(b.home, SchemaFile)); err != nil {
		return err
	}
	b.finalised = n

	slog.Info("table.build.done",
		"home", b.home,
		"rows", n,
		"buildID", meta.BuildID,
		"elapsed", meta.FinishedAt.Sub(meta.CreatedAt),
	)
	return nil
}

// Abort discards everything written since Open.
func (b *TableBuilder) Abort() error {
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store, b.w = nil, nil
	slog.Warn("table.build.abort", "home", b.home)
	return errors.Join(err, primary.Remove(b.home, buildPrimaryBase))
}

// Table is a finished table opened for reading. It is safe for concurrent
// readers.
type Table struct {
	home   string
	schema *schema.Schema
	meta   TableMeta
	codec  *codec.Codec
	opts   Options
	store  *primary.Store

	mu      sync.Mutex
	indexes []*Index
	closed  bool
}

func OpenTable(home string, opts Options) (*Table, error) {
	opts = opts.withDefaults()

	var meta TableMeta
	if err := util.ReadJSON(filepath.Join(home, MetaFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, home)
		}
		return nil, err
	}
	s, err := schema.ReadFile(filepath.Join(home, SchemaFile), meta.Limits)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, home)
		}
		return nil, err
	}
	cd, err := codec.New(meta.Limits)
	if err != nil {
		return nil, err
	}
	store, err := primary.Open(home, primaryBase, opts.ReadCacheSize, primary.ReadOnly)
	if err != nil {
		return nil, err
	}
	if store.NumRows() != meta.NumRows {
		_ = store.Close()
		return nil, fmt.Errorf("wormtable: %s has %d rows, meta says %d", home, store.NumRows(), meta.NumRows)
	}

	slog.Debug("table.open", "home", home, "rows", meta.NumRows, "buildID", meta.BuildID)
	return &Table{
		home:   home,
		schema: s,
		meta:   meta,
		codec:  cd,
		opts:   opts,
		store:  store,
	}, nil
}

func (t *Table) Home() string    { return t.home }
func (t *Table) Schema() *Schema { return t.schema }
func (t *Table) Meta() TableMeta { return t.meta }
func (t *Table) NumRows() uint64 { return t.meta.NumRows }
func (t *Table) Limits() Limits  { return t.meta.Limits }

// Row decodes every column of row i.
func (t *Table) Row(i uint64) ([]any, error) {
	if i >= t.meta.NumRows {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, i, t.meta.NumRows)
	}
	packed, err := t.store.Get(i)
	if err != nil {
		return nil, err
	}
	cols := t.schema.Columns()
	out := make([]any, len(cols))
	for j, c := range cols {
		data, n, err := row.Column(packed, c)
		if err != nil {
			return nil, fmt.Errorf("wormtable: row %d: %w", i, err)
		}
		out[j] = t.codec.Decode(c, data, n)
	}
	return out, nil
}

// Rows iterates every row in row order, projected to the named columns or
// to all of them when none are named.
func (t *Table) Rows(columns ...string) (*RowIterator, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTableClosed
	}
	return iterator.New(t.source(), columns, nil)
}

func (t *Table) source() iterator.Source {
	return iterator.Source{Primary: t.store, Schema: t.schema, Codec: t.codec}
}

func (t *Table) indexSource() index.Source {
	return index.Source{
		Dir:     t.home,
		Primary: t.store,
		Schema:  t.schema,
		Codec:   t.codec,
		BuildID: t.meta.BuildID,
	}
}

// Indexes lists the indexes built for this table.
func (t *Table) Indexes() ([]IndexMeta, error) {
	return index.List(t.home)
}

// Close closes every index handed out by the table, then the table.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, ix := range t.indexes {
		errs = append(errs, ix.ix.Close())
	}
	t.indexes = nil
	errs = append(errs, t.store.Close())
	return errors.Join(errs...)
}
