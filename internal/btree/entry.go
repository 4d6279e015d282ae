package btree

import (
	"fmt"

	"github.com/tuannm99/wormtable/internal/alias/bx"
	"github.com/tuannm99/wormtable/internal/storage"
)

// Leaf entry layout: [klen uint16][key][value]. When the slot carries
// storage.SlotFlagOverflow the value is an encoded storage.OverflowRef.
func encodeLeafEntry(key, value []byte) []byte {
	buf := make([]byte, 2+len(key)+len(value))
	bx.PutU16(buf[0:2], uint16(len(key)))
	copy(buf[2:], key)
	copy(buf[2+len(key):], value)
	return buf
}

func decodeLeafEntry(b []byte) (key, value []byte, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("%w: leaf entry of %d bytes", ErrCorrupt, len(b))
	}
	klen := int(bx.U16(b[0:2]))
	if 2+klen > len(b) {
		return nil, nil, fmt.Errorf("%w: key length %d in %d byte entry", ErrCorrupt, klen, len(b))
	}
	return b[2 : 2+klen], b[2+klen:], nil
}

// Internal entry layout: [childPageID uint32][minKey]. The key of an entry
// is the smallest key of the child's subtree.
func encodeInternalEntry(key []byte, child uint32) []byte {
	buf := make([]byte, 4+len(key))
	bx.PutU32(buf[0:4], child)
	copy(buf[4:], key)
	return buf
}

func decodeInternalEntry(b []byte) ([]byte, uint32, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("%w: internal entry of %d bytes", ErrCorrupt, len(b))
	}
	return b[4:], bx.U32(b[0:4]), nil
}

func overflowValue(ref storage.OverflowRef) []byte {
	b := make([]byte, storage.OverflowRefSize)
	ref.Encode(b)
	return b
}
