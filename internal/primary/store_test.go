package primary

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/wormtable/internal/btree"
)

func records(from, to uint64) []Record {
	var out []Record
	for i := from; i < to; i++ {
		out = append(out, Record{ID: i, Data: []byte(fmt.Sprintf("row-%d", i))})
	}
	return out
}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Create(dir, "primary", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestStore_WriteAndGet(t *testing.T) {
	s, dir := newStore(t)

	require.NoError(t, s.WriteBatch(records(0, 500)))
	require.NoError(t, s.WriteBatch(records(500, 1200)))
	require.NoError(t, s.WriteBatch(nil))
	require.Equal(t, uint64(1200), s.NumRows())

	got, err := s.Get(777)
	require.NoError(t, err)
	require.Equal(t, []byte("row-777"), got)

	_, err = s.Get(1200)
	require.ErrorIs(t, err, ErrRowNotFound)
	require.NoError(t, s.Close())

	ro, err := Open(dir, "primary", 1<<20, ReadOnly)
	require.NoError(t, err)
	defer ro.Close()
	require.Equal(t, uint64(1200), ro.NumRows())
	require.ErrorIs(t, ro.WriteBatch(records(1200, 1201)), btree.ErrReadOnly)
}

func TestStore_RowOrder(t *testing.T) {
	s, _ := newStore(t)

	require.ErrorIs(t, s.WriteBatch(records(1, 2)), ErrRowOrder)
	require.NoError(t, s.WriteBatch(records(0, 3)))
	require.ErrorIs(t, s.WriteBatch(records(2, 4)), ErrRowOrder)
	require.ErrorIs(t, s.WriteBatch([]Record{{ID: 3}}), ErrEmptyRow)
	require.Equal(t, uint64(3), s.NumRows())
}

func TestStore_Scan(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.WriteBatch(records(0, 300)))

	cur := s.Scan(250)
	next := uint64(250)
	for cur.Next() {
		require.Equal(t, next, cur.ID())
		require.Equal(t, fmt.Sprintf("row-%d", next), string(cur.Row()))
		next++
	}
	require.NoError(t, cur.Err())
	require.Equal(t, uint64(300), next)

	var n int
	require.NoError(t, s.ForEach(0, func(id uint64, packed []byte) error {
		n++
		return nil
	}))
	require.Equal(t, 300, n)

	stop := fmt.Errorf("stop")
	require.ErrorIs(t, s.ForEach(0, func(uint64, []byte) error { return stop }), stop)

	require.False(t, s.Scan(300).Next())
}

func TestStore_CreateExclusiveAndRemove(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, s.WriteBatch(records(0, 10)))
	require.NoError(t, s.Close())

	_, err := Create(dir, "primary", 0)
	require.ErrorIs(t, err, btree.ErrExists)

	w, err := Open(dir, "primary", 0, Append)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(records(10, 20)))
	require.Equal(t, uint64(20), w.NumRows())
	require.NoError(t, w.Close())

	require.NoError(t, Rename(dir, "primary", "moved"))
	ok, err := Exists(dir, "moved")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, Remove(dir, "moved"))
	_, err = Open(dir, "moved", 0, ReadOnly)
	require.ErrorIs(t, err, btree.ErrNotFound)
}
