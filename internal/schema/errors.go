package schema

import (
	"errors"
	"fmt"
)

// The two error classes every validation failure belongs to. Callers match
// them with errors.Is; the more specific errors below wrap one of them.
var (
	ErrTypeMismatch = errors.New("wormtable: type mismatch")
	ErrInvalidValue = errors.New("wormtable: invalid value")
)

var (
	ErrBadColumn       = fmt.Errorf("%w: bad column parameters", ErrInvalidValue)
	ErrDuplicateColumn = fmt.Errorf("%w: duplicate column name", ErrInvalidValue)
	ErrUnknownColumn   = errors.New("schema: unknown column")
	ErrBadLimits       = fmt.Errorf("%w: bad limits", ErrInvalidValue)
	ErrRowTooLarge     = fmt.Errorf("%w: row size exceeds limit", ErrInvalidValue)

	ErrSchemaVersion = errors.New("schema: unsupported schema version, rebuild required")
	ErrBadSchemaXML  = errors.New("schema: invalid schema document")
)
