package bx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLittleEndianAt(t *testing.T) {
	buf := make([]byte, 8)
	PutU16At(buf, 0, 0x0A0B)
	PutU32At(buf, 2, 0x01020304)

	assert.Equal(t, []byte{0x0B, 0x0A, 0x04, 0x03, 0x02, 0x01, 0, 0}, buf)
	assert.Equal(t, uint16(0x0A0B), U16At(buf, 0))
	assert.Equal(t, uint32(0x01020304), U32At(buf, 2))
}

func TestBigEndian(t *testing.T) {
	b := make([]byte, 8)
	PutU64BE(b, 0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b)
	assert.Equal(t, uint64(0x0102030405060708), U64BE(b))

	PutU16BEAt(b, 6, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), U16BEAt(b, 6))
	assert.Equal(t, uint32(0x01020304), U32BE(b))
}

func TestUintBE(t *testing.T) {
	for width := 1; width <= 8; width++ {
		v := uint64(0x1122334455667788) >> (8 * (8 - width))

		b := make([]byte, width)
		PutUintBE(b, v)
		assert.Equal(t, v, UintBE(b), "width %d", width)
		assert.Equal(t, b, AppendUintBE(nil, v, width), "width %d", width)
	}

	// big-endian bytes order like the numbers they hold
	lo := AppendUintBE(nil, 255, 5)
	hi := AppendUintBE(nil, 256, 5)
	assert.Negative(t, bytes.Compare(lo, hi))
	assert.Equal(t, []byte{0, 0, 0, 0, 0xff}, lo)
}
