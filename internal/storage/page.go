package storage

import (
	"errors"

	"github.com/tuannm99/wormtable/internal/alias/bx"
)

// Header offsets
const (
	offFlags   = 0
	offPageID  = 2
	offLower   = 6
	offUpper   = 8
	offSpecial = 10
)

// Slot flags
const (
	SlotFlagNormal   uint16 = 0
	SlotFlagOverflow uint16 = 1 << 0 // tuple tail is an OverflowRef
)

var (
	ErrTupleTooLarge = errors.New("page: tuple too large for inline")
	ErrNoSpace       = errors.New("page: not enough free space")
	ErrBadSlot       = errors.New("page: invalid slot")
	ErrCorruption    = errors.New("page: corrupt slot or tuple bounds")
	ErrWrongSize     = errors.New("page: buffer size != PageSize")
)

type Slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// +------------------+ 0
// | PageHeaderData   |
// | LinePointers[]   | <-- pd_lower
// +------------------+
// |                  |
// |   Free space     |
// |                  |
// +------------------+ <-- pd_upper
// |  Tuple Data      |
// |  (grows down)    |
// +------------------+ <-- pd_special
// |  Special Space   |
// +------------------+ Block/Page Size (8192)
//
// Pages are append-only: tuples are never updated or deleted once written.
type Page struct {
	Buf []byte // fixed-size 8KB
}

// NewPage formats buf as an empty page of the given kind, reserving
// specialSize bytes at the end of the page for the owner's use.
func NewPage(buf []byte, pageID uint32, kind PageType, specialSize int) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	if specialSize < 0 || specialSize > PageSize-HeaderSize {
		return nil, ErrCorruption
	}
	p := &Page{Buf: buf}
	p.init(pageID, kind, specialSize)
	return p, nil
}

// WrapPage interprets an existing page image without modifying it.
func WrapPage(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	if p.lower() < HeaderSize || p.upper() < p.lower() || p.special() < p.upper() || int(p.special()) > PageSize {
		return nil, ErrCorruption
	}
	return p, nil
}

// ---- low-level header getters/setters ----
func (p *Page) flags() uint16         { return bx.U16At(p.Buf, offFlags) }
func (p *Page) setFlags(v uint16)     { bx.PutU16At(p.Buf, offFlags, v) }
func (p *Page) PageID() uint32        { return bx.U32At(p.Buf, offPageID) }
func (p *Page) setPageID(v uint32)    { bx.PutU32At(p.Buf, offPageID, v) }
func (p *Page) lower() uint16         { return bx.U16At(p.Buf, offLower) }
func (p *Page) setLower(v uint16)     { bx.PutU16At(p.Buf, offLower, v) }
func (p *Page) upper() uint16         { return bx.U16At(p.Buf, offUpper) }
func (p *Page) setUpper(v uint16)     { bx.PutU16At(p.Buf, offUpper, v) }
func (p *Page) special() uint16       { return bx.U16At(p.Buf, offSpecial) }
func (p *Page) setSpecial(v uint16)   { bx.PutU16At(p.Buf, offSpecial, v) }
func (p *Page) Kind() PageType        { return PageType(p.flags() & 0xff) }
func (p *Page) setKind(kind PageType) { p.setFlags(p.flags()&^0xff | uint16(kind)) }

func (p *Page) init(pageID uint32, kind PageType, specialSize int) {
	clear(p.Buf)
	p.setKind(kind)
	p.setPageID(pageID)
	p.setLower(HeaderSize)
	p.setUpper(uint16(PageSize - specialSize))
	p.setSpecial(uint16(PageSize - specialSize))
}

// ---- public helpers ----
func (p *Page) FreeSpace() int {
	return int(p.upper()) - int(p.lower())
}

func (p *Page) NumSlots() int {
	return int(p.lower()-HeaderSize) / SlotSize
}

// Special returns the page's reserved tail area.
func (p *Page) Special() []byte {
	return p.Buf[p.special():]
}

// ---- slots ----
func (p *Page) slotOff(idx int) int {
	return HeaderSize + idx*SlotSize
}

func (p *Page) getSlot(i int) (Slot, error) {
	if i < 0 || i >= p.NumSlots() {
		return Slot{}, ErrBadSlot
	}
	o := p.slotOff(i)
	if o+SlotSize > int(p.lower()) {
		return Slot{}, ErrCorruption
	}
	return Slot{
		Offset: bx.U16At(p.Buf, o),
		Length: bx.U16At(p.Buf, o+2),
		Flags:  bx.U16At(p.Buf, o+4),
	}, nil
}

func (p *Page) appendSlot(s Slot) int {
	i := p.NumSlots()
	off := p.slotOff(i)
	bx.PutU16At(p.Buf, off, s.Offset)
	bx.PutU16At(p.Buf, off+2, s.Length)
	bx.PutU16At(p.Buf, off+4, s.Flags)
	p.setLower(p.lower() + SlotSize)
	return i
}

// ---- tuples (payload) ----

// MaxTupleSize is the largest tuple an empty page with the given special
// area can hold.
func MaxTupleSize(specialSize int) int {
	return PageSize - specialSize - HeaderSize - SlotSize
}

func (p *Page) Fits(n int) bool {
	return n > 0 && p.FreeSpace() >= n+SlotSize
}

func (p *Page) InsertTuple(tup []byte) (int, error) {
	return p.InsertTupleFlags(tup, SlotFlagNormal)
}

// InsertTupleFlags appends tup and records flags in its slot.
func (p *Page) InsertTupleFlags(tup []byte, flags uint16) (int, error) {
	if len(tup) == 0 {
		return -1, ErrBadSlot
	}
	if len(tup) > MaxTupleSize(PageSize-int(p.special())) {
		return -1, ErrTupleTooLarge
	}
	if !p.Fits(len(tup)) {
		return -1, ErrNoSpace
	}
	u := int(p.upper()) - len(tup)
	copy(p.Buf[u:], tup)
	p.setUpper(uint16(u))
	return p.appendSlot(Slot{Offset: uint16(u), Length: uint16(len(tup)), Flags: flags}), nil
}

func (p *Page) ReadTuple(slot int) ([]byte, error) {
	b, _, err := p.Tuple(slot)
	return b, err
}

// Tuple returns the bytes and slot flags of a tuple. The slice aliases
// the page buffer.
func (p *Page) Tuple(slot int) ([]byte, uint16, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return nil, 0, err
	}
	start, end := int(s.Offset), int(s.Offset)+int(s.Length)
	if s.Length == 0 || start < int(p.upper()) || end > int(p.special()) {
		return nil, 0, ErrCorruption
	}
	return p.Buf[start:end], s.Flags, nil
}
