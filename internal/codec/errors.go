package codec

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/schema"
)

var (
	ErrIntOutOfRange   = fmt.Errorf("%w: integer out of range", schema.ErrInvalidValue)
	ErrFloatOutOfRange = fmt.Errorf("%w: float out of range", schema.ErrInvalidValue)
	ErrMalformed       = fmt.Errorf("%w: malformed text", schema.ErrInvalidValue)
	ErrElementCount    = fmt.Errorf("%w: wrong number of elements", schema.ErrInvalidValue)
	ErrUnknownEnum     = fmt.Errorf("%w: unknown enum value", schema.ErrInvalidValue)
	ErrCharTooLong     = fmt.Errorf("%w: char data too long", schema.ErrInvalidValue)
)

func mismatch(c *schema.Column, v any) error {
	return fmt.Errorf("%w: %T for %s column %q", schema.ErrTypeMismatch, v, c.Type(), c.Name())
}
