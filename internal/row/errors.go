package row

import (
	"errors"
	"fmt"

	"github.com/tuannm99/wormtable/internal/schema"
)

var (
	ErrColumnNotSet  = fmt.Errorf("%w: column not set before commit", schema.ErrInvalidValue)
	ErrForeignColumn = fmt.Errorf("%w: column does not belong to this schema", schema.ErrInvalidValue)
	ErrCorrupt       = errors.New("row: corrupt packed row")
	ErrBadKey        = errors.New("row: bad row key")
)
