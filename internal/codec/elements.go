package codec

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/tuannm99/wormtable/internal/schema"
)

// elementCodec handles a single fixed-width element of a numeric or enum
// column. dst is always exactly ElementSize bytes.
type elementCodec[T any] interface {
	fromNative(c *schema.Column, v any, dst []byte) error
	fromToken(c *schema.Column, tok string, dst []byte) error
	value(c *schema.Column, src []byte) T
}

// elements lifts an elementCodec to whole column values.
type elements[T any] struct {
	enc elementCodec[T]
}

func (e elements[T]) native(c *schema.Column, lim schema.Limits, v any) (Encoded, error) {
	list, err := nativeList(c, v)
	if err != nil {
		return Encoded{}, err
	}
	if err := checkCount(c, lim, len(list)); err != nil {
		return Encoded{}, err
	}
	es := c.ElementSize()
	out := make([]byte, len(list)*es)
	for i, x := range list {
		if err := e.enc.fromNative(c, x, out[i*es:(i+1)*es]); err != nil {
			return Encoded{}, err
		}
	}
	return Encoded{Data: out, Count: len(list)}, nil
}

func (e elements[T]) text(c *schema.Column, lim schema.Limits, text []byte) (Encoded, error) {
	toks, err := tokens(c, text)
	if err != nil {
		return Encoded{}, err
	}
	if err := checkCount(c, lim, len(toks)); err != nil {
		return Encoded{}, err
	}
	es := c.ElementSize()
	out := make([]byte, len(toks)*es)
	for i, tok := range toks {
		if err := e.enc.fromToken(c, tok, out[i*es:(i+1)*es]); err != nil {
			return Encoded{}, err
		}
	}
	return Encoded{Data: out, Count: len(toks)}, nil
}

func (e elements[T]) decode(c *schema.Column, data []byte, count int) any {
	es := c.ElementSize()
	if !c.IsVariable() && c.NumElements() == 1 {
		return e.enc.value(c, data[:es])
	}
	out := make([]T, count)
	for i := range out {
		out[i] = e.enc.value(c, data[i*es:(i+1)*es])
	}
	return out
}

// nativeList flattens v into its elements. Strings are scalars here; byte
// slices are lists of integers.
func nativeList(c *schema.Column, v any) ([]any, error) {
	if v == nil {
		return nil, mismatch(c, v)
	}
	if l, ok := v.([]any); ok {
		if len(l) == 0 {
			return nil, fmt.Errorf("%w: empty list for column %q", schema.ErrTypeMismatch, c.Name())
		}
		return l, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		if n == 0 {
			return nil, fmt.Errorf("%w: empty list for column %q", schema.ErrTypeMismatch, c.Name())
		}
		out := make([]any, n)
		for i := range n {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Chan, reflect.Func, reflect.Bool:
		return nil, mismatch(c, v)
	}
	return []any{v}, nil
}

// tokens splits the text form of a numeric or enum value. Single element
// columns take exactly one token and reject any list separator.
func tokens(c *schema.Column, text []byte) ([]string, error) {
	s := string(bytes.TrimSpace(text))
	if s == "" {
		return nil, fmt.Errorf("%w: %s: empty input", ErrMalformed, c.Name())
	}
	if !c.IsVariable() && c.NumElements() == 1 {
		if strings.ContainsAny(s, ";,") {
			return nil, fmt.Errorf("%w: %s: list given for single value %q", ErrMalformed, c.Name(), s)
		}
		return []string{s}, nil
	}
	parts := strings.Split(s, ";")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: %s: empty list element in %q", ErrMalformed, c.Name(), s)
		}
		parts[i] = p
	}
	return parts, nil
}
