package schema

import "fmt"

const (
	// MaxRowSize is the default ceiling on a packed row, in bytes.
	MaxRowSize = 64 * 1024

	// MaxNumElements is the default cap on the element count of a
	// variable-length column.
	MaxNumElements = 256

	// VariableOverhead is the fixed-region space a variable column takes:
	// a 2-byte offset into the row and a 2-byte element count.
	VariableOverhead = 4

	// Variable marks a column whose element count varies per row.
	Variable = 1<<31 - 1

	// RowKeySize is the width of the big-endian row number key.
	RowKeySize = 5

	// MaxRowID is the largest row number a RowKeySize key can hold.
	MaxRowID = 1<<(8*RowKeySize) - 1
)

// Limits holds the size ceilings a table is built with. They are passed
// explicitly to the codec and the write buffer and recorded in the table
// meta so readers decode with the same values.
type Limits struct {
	MaxRowSize     int `json:"max_row_size"`
	MaxNumElements int `json:"max_num_elements"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRowSize:     MaxRowSize,
		MaxNumElements: MaxNumElements,
	}
}

// Validate checks that offsets and counts still fit their 16-bit fields.
func (l Limits) Validate() error {
	if l.MaxRowSize < 1 || l.MaxRowSize > 1<<16 {
		return fmt.Errorf("%w: max_row_size=%d", ErrBadLimits, l.MaxRowSize)
	}
	if l.MaxNumElements < 1 || l.MaxNumElements > 1<<16-1 {
		return fmt.Errorf("%w: max_num_elements=%d", ErrBadLimits, l.MaxNumElements)
	}
	return nil
}
