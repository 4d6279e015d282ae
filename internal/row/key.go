package row

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/alias/bx"
	"github.com/tuannm99/wormtable/internal/schema"
)

// Key encodes a row number as a fixed-width big-endian key so keys sort in
// row order.
func Key(id uint64) []byte {
	return AppendKey(make([]byte, 0, schema.RowKeySize), id)
}

func AppendKey(dst []byte, id uint64) []byte {
	return bx.AppendUintBE(dst, id, schema.RowKeySize)
}

// ID is the inverse of Key.
func ID(key []byte) (uint64, error) {
	if len(key) != schema.RowKeySize {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadKey, len(key))
	}
	return bx.UintBE(key), nil
}
