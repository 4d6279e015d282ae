package schema

import (
	"fmt"
	"io"
	"strings"
)

// Schema is the ordered, immutable list of columns of a table. Column order
// is the on-disk order of the fixed region.
type Schema struct {
	cols      []*Column
	byName    map[string]*Column
	fixedSize int
}

// NewSchema attaches the columns, assigning each its position and
// fixed-region offset. A column can belong to one schema only.
func NewSchema(limits Limits, cols ...*Column) (*Schema, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: schema has no columns", ErrBadColumn)
	}
	s := &Schema{
		cols:   make([]*Column, 0, len(cols)),
		byName: make(map[string]*Column, len(cols)),
	}
	for _, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("%w: nil column", ErrBadColumn)
		}
		if _, dup := s.byName[c.name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.name)
		}
		if c.position != -1 {
			return nil, fmt.Errorf("%w: %s already belongs to a schema", ErrBadColumn, c.name)
		}
		if !c.IsVariable() && c.numElements > limits.MaxRowSize {
			return nil, fmt.Errorf("%w: %s: num_elements=%d", ErrBadColumn, c.name, c.numElements)
		}
		s.byName[c.name] = c
		s.cols = append(s.cols, c)
		s.fixedSize += c.FixedRegionSize()
	}
	if s.fixedSize > limits.MaxRowSize {
		return nil, fmt.Errorf("%w: fixed region of %d bytes", ErrRowTooLarge, s.fixedSize)
	}
	offset := 0
	for i, c := range s.cols {
		c.position = i
		c.offset = offset
		offset += c.FixedRegionSize()
	}
	return s, nil
}

func (s *Schema) Columns() []*Column { return append([]*Column(nil), s.cols...) }
func (s *Schema) NumColumns() int    { return len(s.cols) }
func (s *Schema) FixedRegionSize() int {
	return s.fixedSize
}

func (s *Schema) ColumnAt(i int) *Column { return s.cols[i] }

// Column returns the column with the given name.
func (s *Schema) Column(name string) (*Column, error) {
	c, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return c, nil
}

// Lookup resolves names in order, failing on the first unknown one.
func (s *Schema) Lookup(names ...string) ([]*Column, error) {
	out := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := s.Column(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Owns reports whether c is attached to this schema.
func (s *Schema) Owns(c *Column) bool {
	return c != nil && c.position >= 0 && c.position < len(s.cols) && s.cols[c.position] == c
}

// Show writes a human readable table of the columns.
func (s *Schema) Show(w io.Writer) error {
	line := strings.Repeat("=", 65)
	row := "%-25s%-12s%-12s%-12s\n"
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	fmt.Fprintf(w, row, "name", "type", "size", "num_elements")
	fmt.Fprintln(w, line)
	for _, c := range s.cols {
		n := fmt.Sprint(c.numElements)
		if c.IsVariable() {
			n = "var"
		}
		fmt.Fprintf(w, row, c.name, c.elemType, fmt.Sprint(c.elemSize), n)
		if c.elemType == Enum {
			for _, k := range c.EnumKeys() {
				_, err := fmt.Fprintf(w, "\t\t%s\t%d\n", k, c.enumValues[k])
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
