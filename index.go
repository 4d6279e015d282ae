package wormtable

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/iterator"
)

var (
	ErrIndexExists   = index.ErrExists
	ErrIndexNotBuilt = index.ErrNotBuilt
	ErrIndexNotOpen  = index.ErrNotOpen
	ErrBadIndexName  = index.ErrBadName
)

// Index is a secondary index over one or more columns of a table. It is
// created by Table.Index and must be built once before it can be opened.
type Index struct {
	t  *Table
	ix *index.Index
}

// Index returns the handle on the index over the named columns, built or
// not. Repeated calls for the same columns share one handle, which is
// closed with the table.
func (t *Table) Index(columns ...string) (*Index, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTableClosed
	}
	name := index.Name(columns)
	if name == primaryBase {
		return nil, fmt.Errorf("%w: %q is the primary store", ErrBadIndexName, primaryBase)
	}
	for _, x := range t.indexes {
		if x.Name() == name {
			return x, nil
		}
	}
	ix, err := index.New(t.indexSource(), columns, t.opts.indexOptions())
	if err != nil {
		return nil, err
	}
	out := &Index{t: t, ix: ix}
	t.indexes = append(t.indexes, out)
	return out, nil
}

func (x *Index) Name() string { return x.ix.Name() }

func (x *Index) Columns() []*Column { return x.ix.Columns() }

func (x *Index) Built() (bool, error) { return x.ix.Built() }

func (x *Index) IsOpen() bool { return x.ix.IsOpen() }

// Build writes the index. A zero interval takes the table's configured
// progress interval.
func (x *Index) Build(progress ProgressFunc, interval uint64) error {
	if interval == 0 {
		interval = x.t.opts.Index.ProgressInterval
	}
	return x.ix.Build(progress, interval)
}

func (x *Index) Open() error  { return x.ix.Open() }
func (x *Index) Close() error { return x.ix.Close() }

func (x *Index) Meta() (IndexMeta, error) { return x.ix.Meta() }

func (x *Index) NumEntries() (uint64, error) { return x.ix.NumEntries() }

// Drop removes the index files.
func (x *Index) Drop() error {
	x.t.mu.Lock()
	x.t.indexes = slices.DeleteFunc(x.t.indexes, func(o *Index) bool { return o == x })
	x.t.mu.Unlock()
	return x.ix.Drop()
}

// Rows iterates the rows in index order, projected to columns (every
// column when empty). lo and hi are inclusive prefix tuples over the
// indexed columns; nil leaves that side open.
func (x *Index) Rows(columns []string, lo, hi []any) (*RowIterator, error) {
	it, err := iterator.New(x.t.source(), columns, x.ix)
	if err != nil {
		return nil, err
	}
	if lo != nil {
		if err := it.SetMin(lo...); err != nil {
			return nil, err
		}
	}
	if hi != nil {
		if err := it.SetMax(hi...); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// ParseBound turns text values, one per leading indexed column, into a
// bound for Rows. The text is parsed as InsertEncodedElements would.
func (x *Index) ParseBound(texts []string) ([]any, error) {
	cols := x.ix.Columns()
	if len(texts) > len(cols) {
		return nil, fmt.Errorf("%w: %d values for %d columns", index.ErrBadBound, len(texts), len(cols))
	}
	out := make([]any, len(texts))
	for i, text := range texts {
		enc, err := x.t.codec.EncodeText(cols[i], []byte(text))
		if err != nil {
			return nil, err
		}
		out[i] = x.t.codec.Decode(cols[i], enc.Data, enc.Count)
	}
	return out, nil
}

// Counts returns the number of rows for each distinct value of the leading
// indexed column, in index order. Enum keys and numbers are reported as
// formatted by fmt.
func (x *Index) Counts() ([]ValueCount, error) {
	first := x.ix.Columns()[0].Name()
	it, err := x.Rows([]string{first}, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ValueCount
	for it.Next() {
		v := fmt.Sprint(it.Row()[0])
		if n := len(out); n > 0 && out[n-1].Value == v {
			out[n-1].Count++
			continue
		}
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	return out, it.Err()
}

type ValueCount struct {
	Value string
	Count uint64
}

// BuildProgressFunc receives progress for the named index.
type BuildProgressFunc func(name string, processed uint64)

// BuildIndexes builds an index for every column list in specs, in
// parallel. progress may be called from several goroutines at once. Indexes
// that already exist are skipped. The first failure is returned once every
// build has stopped.
func BuildIndexes(t *Table, specs [][]string, progress BuildProgressFunc) error {
	idxs := make([]*Index, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, cols := range specs {
		if seen[index.Name(cols)] {
			continue
		}
		seen[index.Name(cols)] = true
		ix, err := t.Index(cols...)
		if err != nil {
			return err
		}
		idxs = append(idxs, ix)
	}

	start := time.Now()
	var g errgroup.Group
	for _, ix := range idxs {
		g.Go(func() error {
			var fn ProgressFunc
			if progress != nil {
				name := ix.Name()
				fn = func(n uint64) { progress(name, n) }
			}
			err := ix.Build(fn, 0)
			if errors.Is(err, index.ErrExists) {
				slog.Info("index.build.skip", "index", ix.Name())
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("index.build.all",
		"indexes", len(idxs),
		"elapsed", time.Since(start),
	)
	return nil
}
