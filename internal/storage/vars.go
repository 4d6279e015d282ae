package storage

import (
	"errors"
)

const (
	OneMB = 1 << 20

	SegmentSize       = 1 << 30                // 1,073,741,824 (1 GiB)
	PageSize          = 1 << 13                // 8,192 (8 KiB)
	MaxPagePerSegment = SegmentSize / PageSize // 131,072 pages/segment
	HeaderSize        = 12                     // 12
	SlotSize          = 6                      // 6 (3 * uint16: offset, length, flags)
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// PageType is stored in the low byte of the page flags.
type PageType uint8

const (
	Slotted PageType = iota + 1
	BTreeLeaf
	BTreeInternal
	Overflow
)

func (t PageType) String() string {
	switch t {
	case Slotted:
		return "slotted"
	case BTreeLeaf:
		return "btree_leaf"
	case BTreeInternal:
		return "btree_internal"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

var (
	ErrReadOnly = errors.New("storage: file set is read-only")
	ErrClosed   = errors.New("storage: storage manager is closed")
)
