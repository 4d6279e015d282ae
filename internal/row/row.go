// Package row packs encoded column values into a single record and reads
// them back.
//
// A packed row is the fixed region (every column in schema order, variable
// columns as a big-endian u16 offset and u16 element count) followed by the
// data of the variable columns, also in schema order.
package row

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/alias/bx"
	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/schema"
)

type State uint8

const (
	Empty State = iota
	Assembling
	Committed
	// Flushed is reported by the writer once a committed row has reached
	// the store. A Builder never enters it.
	Flushed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Assembling:
		return "assembling"
	case Committed:
		return "committed"
	case Flushed:
		return "flushed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

type slot struct {
	set bool
	enc codec.Encoded
}

// Builder holds the row being assembled. It keeps the packed size up to
// date so that an oversized value is refused before it is stored.
type Builder struct {
	schema *schema.Schema
	limits schema.Limits
	slots  []slot
	size   int
	state  State
}

func NewBuilder(s *schema.Schema, limits schema.Limits) *Builder {
	return &Builder{
		schema: s,
		limits: limits,
		slots:  make([]slot, s.NumColumns()),
		size:   s.FixedRegionSize(),
	}
}

func (b *Builder) State() State { return b.state }

// Size is the packed size of the row as assembled so far.
func (b *Builder) Size() int { return b.size }

// Set stores the value of column c, replacing any earlier value. On error
// the row is left as it was.
func (b *Builder) Set(c *schema.Column, enc codec.Encoded) error {
	if !b.schema.Owns(c) {
		return fmt.Errorf("%w: %s", ErrForeignColumn, c.Name())
	}
	if b.state == Committed {
		b.Reset()
	}
	s := &b.slots[c.Position()]
	size := b.size
	if c.IsVariable() {
		size += len(enc.Data) - len(s.enc.Data)
	} else if len(enc.Data) != c.FixedRegionSize() {
		return fmt.Errorf("%w: %s: %d bytes, want %d", schema.ErrInvalidValue, c.Name(), len(enc.Data), c.FixedRegionSize())
	}
	if size > b.limits.MaxRowSize {
		return fmt.Errorf("%w: %s would make the row %d bytes, max %d",
			schema.ErrRowTooLarge, c.Name(), size, b.limits.MaxRowSize)
	}
	s.set = true
	s.enc = enc
	b.size = size
	b.state = Assembling
	return nil
}

// Pack returns the packed row. Every fixed column must have been set;
// unset variable columns are stored with no elements.
func (b *Builder) Pack() ([]byte, error) {
	if b.size > b.limits.MaxRowSize {
		return nil, fmt.Errorf("%w: %d bytes", schema.ErrRowTooLarge, b.size)
	}
	out := make([]byte, b.schema.FixedRegionSize(), b.size)
	for i, s := range b.slots {
		c := b.schema.ColumnAt(i)
		if !c.IsVariable() {
			if !s.set {
				return nil, fmt.Errorf("%w: %s", ErrColumnNotSet, c.Name())
			}
			copy(out[c.FixedRegionOffset():], s.enc.Data)
			continue
		}
		off := c.FixedRegionOffset()
		bx.PutU16BEAt(out, off, uint16(len(out)))
		bx.PutU16BEAt(out, off+2, uint16(s.enc.Count))
		out = append(out, s.enc.Data...)
	}
	b.state = Committed
	return out, nil
}

// Reset discards the row.
func (b *Builder) Reset() {
	clear(b.slots)
	b.size = b.schema.FixedRegionSize()
	b.state = Empty
}

// Column returns the stored bytes and element count of c within a packed
// row. The returned slice aliases row.
func Column(packed []byte, c *schema.Column) ([]byte, int, error) {
	off := c.FixedRegionOffset()
	if !c.IsVariable() {
		end := off + c.FixedRegionSize()
		if end > len(packed) {
			return nil, 0, fmt.Errorf("%w: %s beyond end of row", ErrCorrupt, c.Name())
		}
		return packed[off:end], c.NumElements(), nil
	}
	if off+schema.VariableOverhead > len(packed) {
		return nil, 0, fmt.Errorf("%w: %s header beyond end of row", ErrCorrupt, c.Name())
	}
	count := int(bx.U16BEAt(packed, off+2))
	if count == 0 {
		return nil, 0, nil
	}
	start := int(bx.U16BEAt(packed, off))
	end := start + count*c.ElementSize()
	if end > len(packed) {
		return nil, 0, fmt.Errorf("%w: %s data beyond end of row", ErrCorrupt, c.Name())
	}
	return packed[start:end], count, nil
}
