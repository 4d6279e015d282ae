package index

import (
	"errors"
	"fmt"

	"github.com/tuannm99/wormtable/internal/schema"
)

var (
	ErrStaleIndex = errors.New("index: built for a different table build")
	ErrNotBuilt   = errors.New("index: not built")
	ErrExists     = errors.New("index: already built")
	ErrNotOpen    = errors.New("index: not open")
	ErrBadName    = fmt.Errorf("%w: bad index column", schema.ErrInvalidValue)
	ErrBadBound   = fmt.Errorf("%w: bad index bound", schema.ErrInvalidValue)
)
