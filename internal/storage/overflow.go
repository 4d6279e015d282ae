package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/wormtable/internal/alias/bx"
)

// OverflowRef points to an overflow chain in a dedicated overflow file.
// - FirstPageID: the first page of the chain (0-based page index within the overflow file)
// - Length:      total logical bytes stored across the chain
type OverflowRef struct {
	FirstPageID uint32
	Length      uint32
}

// OverflowRefSize is the encoded size of an OverflowRef.
const OverflowRefSize = 8

func (r OverflowRef) Encode(dst []byte) {
	bx.PutU32(dst[0:4], r.FirstPageID)
	bx.PutU32(dst[4:8], r.Length)
}

func DecodeOverflowRef(src []byte) (OverflowRef, error) {
	if len(src) != OverflowRefSize {
		return OverflowRef{}, fmt.Errorf("overflow: bad ref of %d bytes", len(src))
	}
	return OverflowRef{FirstPageID: bx.U32(src[0:4]), Length: bx.U32(src[4:8])}, nil
}

var ErrOverflowChain = errors.New("overflow: broken chain")

// OverflowManager stores byte slices too large for a page as a linked list
// of pages in a separate file. Chains are append-only.
type OverflowManager struct {
	sm   *StorageManager
	fs   LocalFileSet
	next uint32 // first unused page
}

func NewOverflowManager(sm *StorageManager, fs LocalFileSet) (*OverflowManager, error) {
	n, err := sm.CountPages(fs)
	if err != nil {
		return nil, err
	}
	return &OverflowManager{sm: sm, fs: fs, next: n}, nil
}

// Overflow page layout (PageSize bytes total):
//
//	[0..3]   uint32 nextPageID   // 0 => end of chain
//	[4..5]   uint16 used         // number of payload bytes used
//	[6..]    payload bytes       // up to overflowPayloadSize
const (
	overflowHeaderSize  = 6
	overflowPayloadSize = PageSize - overflowHeaderSize
)

// Write appends data as a new chain and returns its reference. Pages of a
// chain are consecutive, so each page links forward to the next one.
func (ovf *OverflowManager) Write(data []byte) (OverflowRef, error) {
	if len(data) == 0 {
		return OverflowRef{}, fmt.Errorf("overflow: empty data")
	}

	ref := OverflowRef{FirstPageID: ovf.next, Length: uint32(len(data))}
	buf := make([]byte, PageSize)
	for off := 0; off < len(data); {
		chunk := min(len(data)-off, overflowPayloadSize)
		clear(buf)
		next := uint32(0)
		if off+chunk < len(data) {
			next = ovf.next + 1
		}
		bx.PutU32(buf[0:4], next)
		bx.PutU16(buf[4:6], uint16(chunk))
		copy(buf[overflowHeaderSize:], data[off:off+chunk])

		if err := ovf.sm.WritePage(ovf.fs, ovf.next, buf); err != nil {
			return OverflowRef{}, err
		}
		ovf.next++
		off += chunk
	}

	slog.Debug("overflow.write",
		"firstPageID", ref.FirstPageID,
		"length", ref.Length,
		"pages", ovf.next-ref.FirstPageID,
	)
	return ref, nil
}

// Read loads the full logical byte slice from an overflow chain.
func (ovf *OverflowManager) Read(ref OverflowRef) ([]byte, error) {
	if ref.Length == 0 {
		return nil, fmt.Errorf("overflow: zero-length ref")
	}

	out := make([]byte, 0, ref.Length)
	remaining := int(ref.Length)
	pageID := ref.FirstPageID
	buf := make([]byte, PageSize)

	for remaining > 0 {
		if pageID >= ovf.next {
			return nil, fmt.Errorf("%w: page %d past end %d", ErrOverflowChain, pageID, ovf.next)
		}
		if err := ovf.sm.ReadPage(ovf.fs, pageID, buf); err != nil {
			return nil, err
		}

		next := bx.U32(buf[0:4])
		used := int(bx.U16(buf[4:6]))
		if used == 0 || used > overflowPayloadSize || used > remaining {
			slog.Warn("overflow.read.badPage",
				"pageID", pageID,
				"used", used,
				"remaining", remaining,
			)
			return nil, fmt.Errorf("%w: page %d uses %d bytes", ErrOverflowChain, pageID, used)
		}

		out = append(out, buf[overflowHeaderSize:overflowHeaderSize+used]...)
		remaining -= used

		if remaining > 0 {
			if next == 0 {
				return nil, fmt.Errorf("%w: truncated, remaining=%d", ErrOverflowChain, remaining)
			}
			pageID = next
		}
	}
	return out, nil
}

// NumPages is the number of pages in the overflow file.
func (ovf *OverflowManager) NumPages() uint32 { return ovf.next }
