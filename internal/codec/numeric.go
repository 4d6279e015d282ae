package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tuannm99/wormtable/internal/alias/bx"
	"github.com/tuannm99/wormtable/internal/schema"
)

// IntRange returns the smallest and largest value an int column with
// elements of es bytes can hold.
func IntRange(es int) (lo, hi int64) {
	if es >= 8 {
		return math.MinInt64, math.MaxInt64
	}
	hi = int64(1)<<(8*es-1) - 1
	return -hi - 1, hi
}

type intElement struct{}

func (intElement) fromNative(c *schema.Column, v any, dst []byte) error {
	x, ok, err := nativeInt(c, v)
	if !ok {
		return mismatch(c, v)
	}
	if err != nil {
		return err
	}
	return putInt(c, x, dst)
}

// nativeInt widens any Go integer to int64. ok is false for non-integers.
func nativeInt(c *schema.Column, v any) (int64, bool, error) {
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int8:
		return int64(n), true, nil
	case int16:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case uint8:
		return int64(n), true, nil
	case uint16:
		return int64(n), true, nil
	case uint32:
		return int64(n), true, nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, true, fmt.Errorf("%w: %s: %d", ErrIntOutOfRange, c.Name(), n)
		}
		return int64(n), true, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, true, fmt.Errorf("%w: %s: %d", ErrIntOutOfRange, c.Name(), n)
		}
		return int64(n), true, nil
	}
	return 0, false, nil
}

func (intElement) fromToken(c *schema.Column, tok string, dst []byte) error {
	x, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return fmt.Errorf("%w: %s: %q", ErrIntOutOfRange, c.Name(), tok)
		}
		return fmt.Errorf("%w: %s: bad integer %q", ErrMalformed, c.Name(), tok)
	}
	return putInt(c, x, dst)
}

func (intElement) value(_ *schema.Column, src []byte) int64 {
	return DecodeInt(src)
}

func putInt(c *schema.Column, x int64, dst []byte) error {
	lo, hi := IntRange(len(dst))
	if x < lo || x > hi {
		return fmt.Errorf("%w: %s: %d not in [%d, %d]", ErrIntOutOfRange, c.Name(), x, lo, hi)
	}
	EncodeInt(x, dst)
	return nil
}

// EncodeInt writes x into dst as len(dst)-byte offset binary. x must fit.
func EncodeInt(x int64, dst []byte) {
	bx.PutUintBE(dst, uint64(x)^(1<<(8*len(dst)-1)))
}

func DecodeInt(src []byte) int64 {
	es := len(src)
	u := bx.UintBE(src) ^ 1<<(8*es-1)
	shift := 64 - 8*es
	return int64(u<<shift) >> shift
}

type floatElement struct{}

func (floatElement) fromNative(c *schema.Column, v any, dst []byte) error {
	switch f := v.(type) {
	case float32:
		return putFloat(c, float64(f), dst)
	case float64:
		return putFloat(c, f, dst)
	default:
		return mismatch(c, v)
	}
}

func (floatElement) fromToken(c *schema.Column, tok string, dst []byte) error {
	f, err := strconv.ParseFloat(tok, 8*len(dst))
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %s: %q", ErrFloatOutOfRange, c.Name(), tok)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: bad float %q", ErrMalformed, c.Name(), tok)
	}
	return putFloat(c, f, dst)
}

func (floatElement) value(_ *schema.Column, src []byte) float64 {
	return DecodeFloat(src)
}

func putFloat(c *schema.Column, f float64, dst []byte) error {
	if len(dst) == 4 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return fmt.Errorf("%w: %s: %g", ErrFloatOutOfRange, c.Name(), f)
	}
	EncodeFloat(f, dst)
	return nil
}

// EncodeFloat writes f as a 4 or 8 byte comparable IEEE value.
func EncodeFloat(f float64, dst []byte) {
	if len(dst) == 4 {
		bits := math.Float32bits(float32(f))
		if bits&(1<<31) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 31
		}
		bx.PutU32BE(dst, bits)
		return
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	bx.PutU64BE(dst, bits)
}

func DecodeFloat(src []byte) float64 {
	if len(src) == 4 {
		bits := bx.U32BE(src)
		if bits&(1<<31) != 0 {
			bits &^= 1 << 31
		} else {
			bits = ^bits
		}
		return float64(math.Float32frombits(bits))
	}
	bits := bx.U64BE(src)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

type enumElement struct{}

func (enumElement) fromNative(c *schema.Column, v any, dst []byte) error {
	if k, ok := v.(string); ok {
		return putEnumKey(c, k, dst)
	}
	code, ok, err := nativeInt(c, v)
	if !ok {
		return mismatch(c, v)
	}
	if err != nil || code > math.MaxInt32 {
		return fmt.Errorf("%w: %s: code %v", ErrUnknownEnum, c.Name(), v)
	}
	if _, known := c.EnumKey(int(code)); !known {
		return fmt.Errorf("%w: %s: code %d", ErrUnknownEnum, c.Name(), code)
	}
	bx.PutUintBE(dst, uint64(code))
	return nil
}

func (enumElement) fromToken(c *schema.Column, tok string, dst []byte) error {
	return putEnumKey(c, tok, dst)
}

func (enumElement) value(c *schema.Column, src []byte) string {
	k, _ := c.EnumKey(int(bx.UintBE(src)))
	return k
}

func putEnumKey(c *schema.Column, key string, dst []byte) error {
	code, ok := c.EnumCode(key)
	if !ok {
		return fmt.Errorf("%w: %s: %q", ErrUnknownEnum, c.Name(), key)
	}
	bx.PutUintBE(dst, uint64(code))
	return nil
}

