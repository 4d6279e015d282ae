package codec

import (
	"bytes"
	"fmt"

	"github.com/tuannm99/wormtable/internal/schema"
)

// charVariant stores raw bytes. Fixed columns are NUL padded to their
// width. Variable columns with one byte elements store exactly what was
// given, possibly nothing.
type charVariant struct{}

func (charVariant) native(c *schema.Column, lim schema.Limits, v any) (Encoded, error) {
	switch s := v.(type) {
	case string:
		return charBytes(c, lim, []byte(s))
	case []byte:
		return charBytes(c, lim, s)
	default:
		return Encoded{}, mismatch(c, v)
	}
}

func (charVariant) text(c *schema.Column, lim schema.Limits, text []byte) (Encoded, error) {
	return charBytes(c, lim, text)
}

func (charVariant) decode(c *schema.Column, data []byte, count int) any {
	es := c.ElementSize()
	if c.IsVariable() {
		data = data[:count*es]
		if es == 1 {
			return string(data)
		}
	} else {
		data = data[:c.FixedRegionSize()]
	}
	return string(bytes.TrimRight(data, "\x00"))
}

// charBytes splits b into elements of the column's element size, NUL
// padding the last one.
func charBytes(c *schema.Column, lim schema.Limits, b []byte) (Encoded, error) {
	es := c.ElementSize()
	if c.IsVariable() {
		n := (len(b) + es - 1) / es
		if n > lim.MaxNumElements {
			return Encoded{}, fmt.Errorf("%w: %s: %d elements, max %d", ErrElementCount, c.Name(), n, lim.MaxNumElements)
		}
		out := make([]byte, n*es)
		copy(out, b)
		return Encoded{Data: out, Count: n}, nil
	}
	width := c.FixedRegionSize()
	if len(b) > width {
		return Encoded{}, fmt.Errorf("%w: %s: %d bytes, width %d", ErrCharTooLong, c.Name(), len(b), width)
	}
	out := make([]byte, width)
	copy(out, b)
	return Encoded{Data: out, Count: c.NumElements()}, nil
}
