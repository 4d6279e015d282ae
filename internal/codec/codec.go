// Package codec converts column values to and from their stored form.
//
// Every element is stored big-endian so that comparing the stored bytes of
// two elements of the same column gives the same order as comparing the
// values: integers are offset binary, floats have their sign bit flipped
// (and every bit flipped when negative), enum codes are unsigned.
package codec

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/schema"
)

// Encoded is the stored form of one column value. Count is the number of
// elements, which is what a variable column records in its row header.
type Encoded struct {
	Data  []byte
	Count int
}

type variant interface {
	native(c *schema.Column, lim schema.Limits, v any) (Encoded, error)
	text(c *schema.Column, lim schema.Limits, text []byte) (Encoded, error)
	decode(c *schema.Column, data []byte, count int) any
}

var (
	intV   variant = elements[int64]{enc: intElement{}}
	floatV variant = elements[float64]{enc: floatElement{}}
	enumV  variant = elements[string]{enc: enumElement{}}
	charV  variant = charVariant{}
)

// variantFor is the only place element types are switched on.
func variantFor(c *schema.Column) variant {
	switch c.Type() {
	case schema.Int:
		return intV
	case schema.Float:
		return floatV
	case schema.Enum:
		return enumV
	case schema.Char:
		return charV
	}
	panic(fmt.Sprintf("codec: column %q has element type %d", c.Name(), c.Type()))
}

// Codec encodes and decodes values under a fixed set of limits.
type Codec struct {
	limits schema.Limits
}

func New(limits schema.Limits) (*Codec, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Codec{limits: limits}, nil
}

func (cd *Codec) Limits() schema.Limits { return cd.limits }

// EncodeNative encodes a Go value: a scalar of the column's kind or a slice
// of them. A scalar counts as a one element list.
func (cd *Codec) EncodeNative(c *schema.Column, v any) (Encoded, error) {
	return variantFor(c).native(c, cd.limits, v)
}

// EncodeText parses the textual form of a value. Lists are separated by
// ';' and may end with a single trailing ';'.
func (cd *Codec) EncodeText(c *schema.Column, text []byte) (Encoded, error) {
	return variantFor(c).text(c, cd.limits, text)
}

// Decode returns the value stored in data. Single element fixed columns
// decode to a scalar (int64, float64, string); others to a slice. Char
// columns always decode to a string.
func (cd *Codec) Decode(c *schema.Column, data []byte, count int) any {
	return variantFor(c).decode(c, data, count)
}

func checkCount(c *schema.Column, lim schema.Limits, n int) error {
	if c.IsVariable() {
		if n > lim.MaxNumElements {
			return fmt.Errorf("%w: %s: %d elements, max %d", ErrElementCount, c.Name(), n, lim.MaxNumElements)
		}
		return nil
	}
	if n != c.NumElements() {
		return fmt.Errorf("%w: %s: %d elements, want %d", ErrElementCount, c.Name(), n, c.NumElements())
	}
	return nil
}
