// Package iterator reads rows, projected to a set of columns, from the
// primary store in row order or through an index in key order.
package iterator

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tuannm99/wormtable/internal/btree"
	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/primary"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

var (
	ErrNoIndex = errors.New("iterator: bounds need an index")
	ErrStarted = errors.New("iterator: bounds set after iteration started")
)

// Source is the table being read.
type Source struct {
	Primary *primary.Store
	Schema  *schema.Schema
	Codec   *codec.Codec
}

// Iterator yields rows lazily:
//
//	it, _ := iterator.New(src, []string{"pos", "qual"}, idx)
//	_ = it.SetMin(100)
//	for it.Next() {
//		use(it.Row())
//	}
//	err := it.Err()
//
// A primary scan covers the rows present when the iterator was created.
// Iterators are not resumable; a new one starts again from its lower bound.
type Iterator struct {
	src  Source
	cols []*schema.Column
	idx  *index.Index

	min, max []byte
	end      uint64

	started bool
	done    bool
	pc      *primary.Cursor
	ic      *btree.Cursor

	row   []any
	rowID uint64
	err   error
}

// New creates an iterator returning the named columns, or every column when
// columns is empty. idx, if not nil, must be open.
func New(src Source, columns []string, idx *index.Index) (*Iterator, error) {
	cols := src.Schema.Columns()
	if len(columns) > 0 {
		var err error
		if cols, err = src.Schema.Lookup(columns...); err != nil {
			return nil, err
		}
	}
	if idx != nil && !idx.IsOpen() {
		return nil, fmt.Errorf("%w: %s", index.ErrNotOpen, idx.Name())
	}
	return &Iterator{
		src:  src,
		cols: cols,
		idx:  idx,
		end:  src.Primary.NumRows(),
	}, nil
}

// SetMin restricts the scan to index keys >= values. values may cover a
// prefix of the index columns.
func (it *Iterator) SetMin(values ...any) error {
	b, err := it.bound(values)
	if err != nil {
		return err
	}
	it.min = b
	return nil
}

// SetMax restricts the scan to index keys <= values, compared on the
// columns given.
func (it *Iterator) SetMax(values ...any) error {
	b, err := it.bound(values)
	if err != nil {
		return err
	}
	it.max = b
	return nil
}

func (it *Iterator) bound(values []any) ([]byte, error) {
	if it.idx == nil {
		return nil, ErrNoIndex
	}
	if it.started {
		return nil, ErrStarted
	}
	return it.idx.EncodeBound(values)
}

func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	var (
		id     uint64
		packed []byte
		ok     bool
	)
	if it.idx == nil {
		id, packed, ok = it.nextPrimary()
	} else {
		id, packed, ok = it.nextIndexed()
	}
	it.started = true
	if !ok {
		it.finish()
		return false
	}

	out := make([]any, len(it.cols))
	for i, c := range it.cols {
		data, n, err := row.Column(packed, c)
		if err != nil {
			it.err = fmt.Errorf("iterator: row %d: %w", id, err)
			it.finish()
			return false
		}
		out[i] = it.src.Codec.Decode(c, data, n)
	}
	it.row, it.rowID = out, id
	return true
}

func (it *Iterator) nextPrimary() (uint64, []byte, bool) {
	if !it.started {
		it.pc = it.src.Primary.Scan(0)
	}
	if !it.pc.Next() {
		it.err = it.pc.Err()
		return 0, nil, false
	}
	if it.pc.ID() >= it.end {
		return 0, nil, false
	}
	return it.pc.ID(), it.pc.Row(), true
}

func (it *Iterator) nextIndexed() (uint64, []byte, bool) {
	if !it.started {
		c, err := it.idx.Seek(it.min)
		if err != nil {
			it.err = err
			return 0, nil, false
		}
		it.ic = c
	} else {
		it.ic.Next()
	}
	if !it.ic.Valid() {
		it.err = it.ic.Err()
		return 0, nil, false
	}

	key := it.ic.Key()
	if it.max != nil && bytes.Compare(key[:min(len(key), len(it.max))], it.max) > 0 {
		return 0, nil, false
	}
	id, err := index.RowID(key)
	if err != nil {
		it.err = err
		return 0, nil, false
	}
	packed, err := it.src.Primary.Get(id)
	if err != nil {
		it.err = err
		return 0, nil, false
	}
	return id, packed, true
}

func (it *Iterator) finish() {
	it.done = true
	it.row = nil
	it.pc, it.ic = nil, nil
}

// Row is the current row, one value per projected column, as decoded by
// the codec.
func (it *Iterator) Row() []any   { return it.row }
func (it *Iterator) RowID() uint64 { return it.rowID }
func (it *Iterator) Err() error    { return it.err }

func (it *Iterator) Columns() []*schema.Column { return it.cols }

// Close stops the iteration. The stores stay open.
func (it *Iterator) Close() error {
	it.finish()
	return nil
}
