package schema

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// SchemaVersion is written to every schema document; a document with any
// other version is refused.
const SchemaVersion = "0.5"

const variableToken = "variable"

type xmlSchema struct {
	XMLName xml.Name    `xml:"schema"`
	Version string      `xml:"version,attr"`
	Columns []xmlColumn `xml:"columns>column"`
}

type xmlColumn struct {
	Name        string         `xml:"name,attr"`
	Description string         `xml:"description,attr"`
	ElementType string         `xml:"element_type,attr"`
	ElementSize int            `xml:"element_size,attr"`
	NumElements string         `xml:"num_elements,attr"`
	EnumValues  []xmlEnumValue `xml:"enum_values>enum_value,omitempty"`
}

type xmlEnumValue struct {
	Key   string `xml:"key,attr"`
	Value int    `xml:"value,attr"`
}

// WriteXML encodes the schema as an indented XML document.
func (s *Schema) WriteXML(w io.Writer) error {
	doc := xmlSchema{Version: SchemaVersion}
	for _, c := range s.cols {
		xc := xmlColumn{
			Name:        c.name,
			Description: c.description,
			ElementType: c.elemType.String(),
			ElementSize: c.elemSize,
			NumElements: strconv.Itoa(c.numElements),
		}
		if c.IsVariable() {
			xc.NumElements = variableToken
		}
		for _, k := range c.EnumKeys() {
			xc.EnumValues = append(xc.EnumValues, xmlEnumValue{Key: k, Value: c.enumValues[k]})
		}
		doc.Columns = append(doc.Columns, xc)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("schema: encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadXML parses a schema document. Limits are not part of the document and
// are supplied by the caller.
func ReadXML(r io.Reader, limits Limits) (*Schema, error) {
	var doc xmlSchema
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchemaXML, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrBadSchemaXML)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrSchemaVersion, doc.Version, SchemaVersion)
	}
	cols := make([]*Column, 0, len(doc.Columns))
	for _, xc := range doc.Columns {
		c, err := xc.column()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewSchema(limits, cols...)
}

func (xc xmlColumn) column() (*Column, error) {
	t, err := ParseElementType(xc.ElementType)
	if err != nil {
		return nil, err
	}
	n := Variable
	if xc.NumElements != variableToken {
		n, err = strconv.Atoi(xc.NumElements)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: num_elements=%q", ErrBadSchemaXML, xc.Name, xc.NumElements)
		}
	}
	if t != Enum {
		return NewColumn(xc.Name, xc.Description, t, xc.ElementSize, n)
	}
	values := make(map[string]int, len(xc.EnumValues))
	for _, ev := range xc.EnumValues {
		if _, dup := values[ev.Key]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate enum key %q", ErrBadSchemaXML, xc.Name, ev.Key)
		}
		values[ev.Key] = ev.Value
	}
	return NewEnumColumn(xc.Name, xc.Description, xc.ElementSize, n, values)
}

// WriteFile writes the schema document to path, replacing any existing file.
func (s *Schema) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".schema-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := s.WriteXML(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadFile loads a schema document from path.
func ReadFile(path string, limits Limits) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadXML(f, limits)
}
