package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slot1Data = []byte("data string of slot 1")
	slot2Data = []byte("data string of slot 2")
)

func newPage(t *testing.T, special int) *Page {
	t.Helper()
	buf := make([]byte, PageSize)

	p, err := NewPage(buf, 7, BTreeLeaf, special)
	require.NoError(t, err)

	// default after init page
	assert.Equal(t, uint16(PageSize-special), p.upper())
	assert.Equal(t, uint16(HeaderSize), p.lower())
	assert.Equal(t, 0, p.NumSlots())
	assert.Equal(t, BTreeLeaf, p.Kind())
	assert.Equal(t, uint32(7), p.PageID())
	assert.Len(t, p.Special(), special)
	return p
}

func TestPage_InsertRead(t *testing.T) {
	p := newPage(t, 0)

	slot, err := p.InsertTuple(slot1Data)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	slot, err = p.InsertTupleFlags(slot2Data, SlotFlagOverflow)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	// after inserting two tuples
	assert.Equal(t, uint16(0x1fd6), p.upper())
	assert.Equal(t, uint16(0x18), p.lower())
	assert.Equal(t, 2, p.NumSlots())

	got, flags, err := p.Tuple(0)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, got)
	assert.Equal(t, SlotFlagNormal, flags)

	got, flags, err = p.Tuple(1)
	require.NoError(t, err)
	assert.Equal(t, slot2Data, got)
	assert.Equal(t, SlotFlagOverflow, flags)

	// bad slot
	_, err = p.ReadTuple(-1)
	require.ErrorIs(t, err, ErrBadSlot)
	_, err = p.ReadTuple(2)
	require.ErrorIs(t, err, ErrBadSlot)

	// wrapping an image sees the same tuples
	w, err := WrapPage(bytes.Clone(p.Buf))
	require.NoError(t, err)
	got, err = w.ReadTuple(0)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, got)
}

func TestPage_SpecialAreaUntouched(t *testing.T) {
	p := newPage(t, 4)
	copy(p.Special(), []byte{1, 2, 3, 4})

	tup := bytes.Repeat([]byte{9}, 100)
	for p.Fits(len(tup)) {
		_, err := p.InsertTuple(tup)
		require.NoError(t, err)
	}
	_, err := p.InsertTuple(tup)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, []byte{1, 2, 3, 4}, p.Special())

	_, err = newPage(t, 4).InsertTuple(make([]byte, MaxTupleSize(4)+1))
	require.ErrorIs(t, err, ErrTupleTooLarge)
	_, err = newPage(t, 4).InsertTuple(make([]byte, MaxTupleSize(4)))
	require.NoError(t, err)
}

func TestWrapPage_Rejects(t *testing.T) {
	_, err := WrapPage(make([]byte, 10))
	require.ErrorIs(t, err, ErrWrongSize)
	_, err = WrapPage(make([]byte, PageSize))
	require.ErrorIs(t, err, ErrCorruption)
}
