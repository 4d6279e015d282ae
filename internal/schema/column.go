package schema

import (
	"fmt"
	"maps"
	"slices"
)

type ElementType uint8

const (
	Int ElementType = iota + 1
	Float
	Char
	Enum
)

func (t ElementType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Char:
		return "char"
	case Enum:
		return "enum"
	default:
		return "unknown"
	}
}

func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "char":
		return Char, nil
	case "enum":
		return Enum, nil
	default:
		return 0, fmt.Errorf("%w: element type %q", ErrBadColumn, s)
	}
}

// Column describes one typed slot of every row. A Column is immutable once
// built; position and offset are assigned when it is added to a Schema.
type Column struct {
	name        string
	description string
	elemType    ElementType
	elemSize    int
	numElements int
	enumValues  map[string]int
	enumKeys    map[int]string

	position int // index in schema, -1 until attached
	offset   int // fixed-region offset
}

// NewColumn validates the parameters and returns a detached column.
func NewColumn(name, description string, t ElementType, elementSize, numElements int) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrBadColumn)
	}
	if elementSize <= 0 {
		return nil, fmt.Errorf("%w: %s: element_size=%d", ErrBadColumn, name, elementSize)
	}
	if numElements <= 0 {
		return nil, fmt.Errorf("%w: %s: num_elements=%d", ErrBadColumn, name, numElements)
	}
	switch t {
	case Int:
		if elementSize > 8 {
			return nil, fmt.Errorf("%w: %s: int element_size=%d", ErrBadColumn, name, elementSize)
		}
	case Float:
		if elementSize != 4 && elementSize != 8 {
			return nil, fmt.Errorf("%w: %s: float element_size=%d", ErrBadColumn, name, elementSize)
		}
	case Char:
	case Enum:
		if elementSize > 2 {
			return nil, fmt.Errorf("%w: %s: enum element_size=%d", ErrBadColumn, name, elementSize)
		}
	default:
		return nil, fmt.Errorf("%w: %s: element type %d", ErrBadColumn, name, t)
	}
	return &Column{
		name:        name,
		description: description,
		elemType:    t,
		elemSize:    elementSize,
		numElements: numElements,
		position:    -1,
	}, nil
}

func NewIntColumn(name, description string, elementSize, numElements int) (*Column, error) {
	return NewColumn(name, description, Int, elementSize, numElements)
}

func NewFloatColumn(name, description string, elementSize, numElements int) (*Column, error) {
	return NewColumn(name, description, Float, elementSize, numElements)
}

func NewCharColumn(name, description string, numElements int) (*Column, error) {
	return NewColumn(name, description, Char, 1, numElements)
}

// NewEnumColumn builds an enum column whose codes must fit elementSize bytes.
// Code 0 is allowed; codes and keys must both be unique.
func NewEnumColumn(name, description string, elementSize, numElements int, values map[string]int) (*Column, error) {
	c, err := NewColumn(name, description, Enum, elementSize, numElements)
	if err != nil {
		return nil, err
	}
	maxCode := 1<<(8*elementSize) - 1
	c.enumValues = make(map[string]int, len(values))
	c.enumKeys = make(map[int]string, len(values))
	for k, v := range values {
		if v < 0 || v > maxCode {
			return nil, fmt.Errorf("%w: %s: enum code %d for %q", ErrBadColumn, name, v, k)
		}
		if prev, dup := c.enumKeys[v]; dup {
			return nil, fmt.Errorf("%w: %s: enum code %d used by %q and %q", ErrBadColumn, name, v, prev, k)
		}
		c.enumValues[k] = v
		c.enumKeys[v] = k
	}
	return c, nil
}

func (c *Column) Name() string           { return c.name }
func (c *Column) Description() string    { return c.description }
func (c *Column) Type() ElementType      { return c.elemType }
func (c *Column) ElementSize() int       { return c.elemSize }
func (c *Column) NumElements() int       { return c.numElements }
func (c *Column) IsVariable() bool       { return c.numElements == Variable }
func (c *Column) Position() int          { return c.position }
func (c *Column) FixedRegionOffset() int { return c.offset }

func (c *Column) EnumCode(key string) (int, bool) {
	v, ok := c.enumValues[key]
	return v, ok
}

func (c *Column) EnumKey(code int) (string, bool) {
	k, ok := c.enumKeys[code]
	return k, ok
}

// EnumValues returns a copy of the key -> code mapping.
func (c *Column) EnumValues() map[string]int {
	return maps.Clone(c.enumValues)
}

// EnumKeys returns the enum keys ordered by code.
func (c *Column) EnumKeys() []string {
	codes := slices.Sorted(maps.Keys(c.enumKeys))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, c.enumKeys[code])
	}
	return out
}

// FixedRegionSize is the number of bytes the column occupies in the fixed
// region of a packed row.
func (c *Column) FixedRegionSize() int {
	if c.IsVariable() {
		return VariableOverhead
	}
	return c.numElements * c.elemSize
}

func (c *Column) String() string {
	n := fmt.Sprint(c.numElements)
	if c.IsVariable() {
		n = "var"
	}
	return fmt.Sprintf("%s(%s%d x %s)", c.name, c.elemType, c.elemSize*8, n)
}
