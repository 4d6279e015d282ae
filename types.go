// Package wormtable is a write-once columnar table store.
//
// A table is built once with a TableBuilder, row by row, and is read-only
// afterwards. Rows can be read back by number, scanned in row order, or
// scanned in the order of a secondary index over one or more columns with
// optional bounds.
package wormtable

import (
	"github.com/tuannm99/wormtable/internal/btree"
	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/iterator"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

type (
	Schema       = schema.Schema
	Column       = schema.Column
	Limits       = schema.Limits
	ElementType  = schema.ElementType
	ProgressFunc = index.ProgressFunc
	IndexMeta    = index.Meta
	RowIterator  = iterator.Iterator
)

const (
	Int   = schema.Int
	Float = schema.Float
	Char  = schema.Char
	Enum  = schema.Enum

	Variable         = schema.Variable
	VariableOverhead = schema.VariableOverhead
	MaxRowSize       = schema.MaxRowSize
	MaxNumElements   = schema.MaxNumElements
)

var (
	ErrTypeMismatch = schema.ErrTypeMismatch
	ErrInvalidValue = schema.ErrInvalidValue
	ErrRowTooLarge  = schema.ErrRowTooLarge
	ErrBadColumn    = schema.ErrBadColumn
	ErrColumnNotSet = row.ErrColumnNotSet

	ErrIntOutOfRange = codec.ErrIntOutOfRange
	ErrMalformed     = codec.ErrMalformed
	ErrElementCount  = codec.ErrElementCount
	ErrUnknownEnum   = codec.ErrUnknownEnum

	ErrSchemaVersion = schema.ErrSchemaVersion
	ErrStaleIndex    = index.ErrStaleIndex
	ErrNoIndex       = iterator.ErrNoIndex
	ErrKeyTooLarge   = btree.ErrKeyTooLarge
)

func DefaultLimits() Limits { return schema.DefaultLimits() }

// NewSchema builds a schema under the default limits.
func NewSchema(cols ...*Column) (*Schema, error) {
	return schema.NewSchema(schema.DefaultLimits(), cols...)
}

func NewSchemaWithLimits(limits Limits, cols ...*Column) (*Schema, error) {
	return schema.NewSchema(limits, cols...)
}

func NewIntColumn(name, description string, elementSize, numElements int) (*Column, error) {
	return schema.NewIntColumn(name, description, elementSize, numElements)
}

func NewFloatColumn(name, description string, elementSize, numElements int) (*Column, error) {
	return schema.NewFloatColumn(name, description, elementSize, numElements)
}

func NewCharColumn(name, description string, numElements int) (*Column, error) {
	return schema.NewCharColumn(name, description, numElements)
}

func NewEnumColumn(name, description string, elementSize, numElements int, values map[string]int) (*Column, error) {
	return schema.NewEnumColumn(name, description, elementSize, numElements, values)
}

// ReadSchema loads a schema document written by a TableBuilder or by hand.
func ReadSchema(path string, limits Limits) (*Schema, error) {
	return schema.ReadFile(path, limits)
}
