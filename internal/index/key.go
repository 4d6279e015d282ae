package index

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

// Variable columns are written element by element, each element preceded
// by elemMarker and the list closed by listEnd, so a list sorts before any
// longer list it is a prefix of.
const (
	listEnd    = 0x00
	elemMarker = 0x01
)

// appendColumn appends the comparable form of one stored column value.
func appendColumn(dst []byte, c *schema.Column, data []byte, count int) []byte {
	if !c.IsVariable() {
		return append(dst, data...)
	}
	es := c.ElementSize()
	for i := range count {
		dst = append(dst, elemMarker)
		dst = append(dst, data[i*es:(i+1)*es]...)
	}
	return append(dst, listEnd)
}

// maxKeySize is the widest key an index over cols can produce for rows of
// s: fixed columns at their stored width, variable columns at the most
// elements a row can hold, plus the row key.
func maxKeySize(s *schema.Schema, cols []*schema.Column, lim schema.Limits) int {
	n := schema.RowKeySize
	room := lim.MaxRowSize - s.FixedRegionSize()
	for _, c := range cols {
		if !c.IsVariable() {
			n += c.FixedRegionSize()
			continue
		}
		es := c.ElementSize()
		count := min(lim.MaxNumElements, room/es)
		n += count*(1+es) + 1
	}
	return n
}

// appendRowKey appends the index key of a packed row: the comparable form
// of each column followed by the row key, which orders equal values by row
// number.
func appendRowKey(dst []byte, cols []*schema.Column, packed []byte, id uint64) ([]byte, error) {
	for _, c := range cols {
		data, n, err := row.Column(packed, c)
		if err != nil {
			return nil, err
		}
		dst = appendColumn(dst, c, data, n)
	}
	return row.AppendKey(dst, id), nil
}

// RowID extracts the row number from the tail of an index key.
func RowID(key []byte) (uint64, error) {
	if len(key) < schema.RowKeySize {
		return 0, fmt.Errorf("%w: index key of %d bytes", row.ErrBadKey, len(key))
	}
	return row.ID(key[len(key)-schema.RowKeySize:])
}

// EncodeBound encodes a tuple of Go values, one per leading column, into
// the key space of an index over cols. Fewer values than columns give a
// prefix bound.
func EncodeBound(cd *codec.Codec, cols []*schema.Column, values []any) ([]byte, error) {
	if len(values) > len(cols) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrBadBound, len(values), len(cols))
	}
	var out []byte
	for i, v := range values {
		enc, err := cd.EncodeNative(cols[i], v)
		if err != nil {
			return nil, err
		}
		out = appendColumn(out, cols[i], enc.Data, enc.Count)
	}
	return out, nil
}
