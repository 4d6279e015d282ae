package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64Key(i uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, i)
}

// wideKey pads the counter so that only a handful of keys fit in a page.
func wideKey(i uint64) []byte {
	k := make([]byte, 600)
	binary.BigEndian.PutUint64(k, i)
	return k
}

func valueFor(i uint64) []byte {
	return []byte(fmt.Sprintf("value-%06d-%s", i, bytes.Repeat([]byte{'x'}, 80)))
}

func newTestTree(t *testing.T) (*Tree, string) {
	t.Helper()
	dir := t.TempDir()
	tr, err := Create(dir, "t", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, dir
}

func appendN(t *testing.T, tr *Tree, key func(uint64) []byte, from, to uint64) {
	t.Helper()
	for i := from; i < to; i++ {
		require.NoError(t, tr.Append(key(i), valueFor(i)))
	}
}

func TestTree_Empty(t *testing.T) {
	tr, _ := newTestTree(t)

	assert.Zero(t, tr.Len())
	assert.Equal(t, 1, tr.Height())
	assert.Nil(t, tr.LastKey())

	_, err := tr.Get(u64Key(1))
	require.ErrorIs(t, err, ErrKeyNotFound)

	c := tr.First()
	require.NoError(t, c.Err())
	require.False(t, c.Valid())
	require.False(t, c.Next())
}

func TestTree_AppendAcrossPages(t *testing.T) {
	tr, _ := newTestTree(t)

	// even keys only, so odd keys fall between entries
	const n = 5000
	for i := range uint64(n) {
		require.NoError(t, tr.Append(u64Key(2*i), valueFor(i)))
	}
	require.Equal(t, uint64(n), tr.Len())
	require.GreaterOrEqual(t, tr.Height(), 2)
	require.Equal(t, u64Key(2*(n-1)), tr.LastKey())

	for _, i := range []uint64{0, 1, 69, 70, 71, 2500, n - 1} {
		v, err := tr.Get(u64Key(2 * i))
		require.NoError(t, err)
		require.Equal(t, valueFor(i), v)

		_, err = tr.Get(u64Key(2*i + 1))
		require.ErrorIs(t, err, ErrKeyNotFound)
	}

	t.Run("full scan", func(t *testing.T) {
		c := tr.First()
		var seen uint64
		for ; c.Valid(); c.Next() {
			require.Equal(t, u64Key(2*seen), c.Key())
			v, err := c.Value()
			require.NoError(t, err)
			require.Equal(t, valueFor(seen), v)
			seen++
		}
		require.NoError(t, c.Err())
		require.Equal(t, uint64(n), seen)
	})

	t.Run("seek", func(t *testing.T) {
		c := tr.Seek(u64Key(3001))
		require.True(t, c.Valid())
		require.Equal(t, u64Key(3002), c.Key())

		c = tr.Seek(u64Key(3002))
		require.True(t, c.Valid())
		require.Equal(t, u64Key(3002), c.Key())
		require.True(t, c.Next())
		require.Equal(t, u64Key(3004), c.Key())

		c = tr.Seek([]byte{0})
		require.True(t, c.Valid())
		require.Equal(t, u64Key(0), c.Key())

		c = tr.Seek(u64Key(2 * n))
		require.NoError(t, c.Err())
		require.False(t, c.Valid())
	})

	t.Run("seek between keys", func(t *testing.T) {
		for i := uint64(1); i < n; i += 37 {
			c := tr.Seek(u64Key(2*i - 1))
			require.True(t, c.Valid(), "i=%d", i)
			require.Equal(t, u64Key(2*i), c.Key())
		}
	})
}

func TestTree_ThreeLevels(t *testing.T) {
	tr, dir := newTestTree(t)

	const n = 400
	appendN(t, tr, wideKey, 0, n)
	require.GreaterOrEqual(t, tr.Height(), 3)
	require.NoError(t, tr.Close())

	ro, err := Open(dir, "t", Options{ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	require.Equal(t, uint64(n), ro.Len())
	for i := range uint64(n) {
		v, err := ro.Get(wideKey(i))
		require.NoError(t, err, "i=%d", i)
		require.Equal(t, valueFor(i), v)
	}

	c := ro.Seek(wideKey(123))
	for i := uint64(123); i < n; i++ {
		require.True(t, c.Valid())
		require.Equal(t, wideKey(i), c.Key())
		c.Next()
	}
	require.False(t, c.Valid())
	require.NoError(t, c.Err())
}

func TestTree_OverflowValues(t *testing.T) {
	tr, dir := newTestTree(t)

	big := bytes.Repeat([]byte("0123456789"), 2500)
	require.NoError(t, tr.Append(u64Key(1), []byte("small")))
	require.NoError(t, tr.Append(u64Key(2), big))
	require.NoError(t, tr.Append(u64Key(3), big[:maxInlineEntry()]))
	require.NoError(t, tr.Append(u64Key(4), nil))
	require.NoError(t, tr.Close())

	ro, err := Open(dir, "t", Options{ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	v, err := ro.Get(u64Key(2))
	require.NoError(t, err)
	require.Equal(t, big, v)

	v, err = ro.Get(u64Key(3))
	require.NoError(t, err)
	require.Equal(t, big[:maxInlineEntry()], v)

	v, err = ro.Get(u64Key(4))
	require.NoError(t, err)
	require.Empty(t, v)

	c := ro.Seek(u64Key(2))
	require.True(t, c.Valid())
	v, err = c.Value()
	require.NoError(t, err)
	require.Equal(t, big, v)
}

func TestTree_AppendErrors(t *testing.T) {
	tr, _ := newTestTree(t)
	require.NoError(t, tr.Append(u64Key(10), nil))

	require.ErrorIs(t, tr.Append(u64Key(10), nil), ErrOutOfOrderInsert)
	require.ErrorIs(t, tr.Append(u64Key(9), nil), ErrOutOfOrderInsert)
	require.ErrorIs(t, tr.Append(nil, nil), ErrEmptyKey)
	require.ErrorIs(t, tr.Append(make([]byte, MaxKeySize+1), nil), ErrKeyTooLarge)
	require.Equal(t, uint64(1), tr.Len())

	require.NoError(t, tr.Close())
	require.ErrorIs(t, tr.Append(u64Key(11), nil), ErrClosed)
	_, err := tr.Get(u64Key(10))
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, tr.First().Err(), ErrClosed)
}

func TestTree_ReopenAndContinue(t *testing.T) {
	tr, dir := newTestTree(t)
	appendN(t, tr, u64Key, 0, 1000)
	require.NoError(t, tr.Close())

	w, err := Open(dir, "t", Options{})
	require.NoError(t, err)
	require.ErrorIs(t, w.Append(u64Key(5), nil), ErrOutOfOrderInsert)
	appendN(t, w, u64Key, 1000, 2000)
	require.NoError(t, w.Close())

	ro, err := Open(dir, "t", Options{ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	require.ErrorIs(t, ro.Append(u64Key(5000), nil), ErrReadOnly)
	require.Equal(t, uint64(2000), ro.Len())

	var i uint64
	for c := ro.First(); c.Valid(); c.Next() {
		require.Equal(t, u64Key(i), c.Key())
		i++
	}
	require.Equal(t, uint64(2000), i)
}

func TestTree_CreateOpenDrop(t *testing.T) {
	tr, dir := newTestTree(t)
	appendN(t, tr, u64Key, 0, 10)
	require.NoError(t, tr.Close())

	_, err := Create(dir, "t", Options{})
	require.ErrorIs(t, err, ErrExists)

	_, err = Open(dir, "missing", Options{})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Rename(dir, "t", "u"))
	ok, err := Exists(dir, "t")
	require.NoError(t, err)
	require.False(t, ok)

	u, err := Open(dir, "u", Options{ReadOnly: true})
	require.NoError(t, err)
	v, err := u.Get(u64Key(3))
	require.NoError(t, err)
	require.Equal(t, valueFor(3), v)
	require.NoError(t, u.Close())

	require.NoError(t, Drop(dir, "u"))
	ok, err = Exists(dir, "u")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, Drop(dir, "never-existed"))
}
