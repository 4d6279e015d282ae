package wormtable

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/wormtable/internal/alias/util"
)

const testRows = 1200

type testColumns struct {
	chrom, pos, qual, name, filters *Column
}

func newTestSchema(t *testing.T) (*Schema, testColumns) {
	t.Helper()
	var c testColumns
	var err error
	c.chrom, err = NewEnumColumn("chrom", "chromosome", 1, 1, map[string]int{"1": 0, "2": 1, "X": 2})
	require.NoError(t, err)
	c.pos, err = NewIntColumn("pos", "position", 4, 1)
	require.NoError(t, err)
	c.qual, err = NewFloatColumn("qual", "quality", 4, 1)
	require.NoError(t, err)
	c.name, err = NewCharColumn("name", "", Variable)
	require.NoError(t, err)
	c.filters, err = NewIntColumn("filters", "", 2, Variable)
	require.NoError(t, err)
	s, err := NewSchema(c.chrom, c.pos, c.qual, c.name, c.filters)
	require.NoError(t, err)
	return s, c
}

var chroms = []string{"1", "2", "X"}

func expectedRow(i int) []any {
	filters := make([]int64, i%3)
	for j := range filters {
		filters[j] = int64(j - 1)
	}
	return []any{
		chroms[i%3],
		int64(i * 10),
		float64(i%100) / 4,
		"id" + strconv.Itoa(i%7),
		filters,
	}
}

func buildTable(t *testing.T, home string, n int) {
	t.Helper()
	s, c := newTestSchema(t)
	b := NewTableBuilder(home, s, Options{BufferSize: MaxRowSize, MaxRows: 50})
	require.NoError(t, b.Open())
	for i := range n {
		require.NoError(t, b.InsertElements(c.chrom, chroms[i%3]))
		require.NoError(t, b.InsertEncodedElements(c.pos, []byte(strconv.Itoa(i*10))))
		require.NoError(t, b.InsertElements(c.qual, float64(i%100)/4))
		require.NoError(t, b.InsertElements(c.name, "id"+strconv.Itoa(i%7)))
		if f := expectedRow(i)[4].([]int64); len(f) > 0 {
			require.NoError(t, b.InsertElements(c.filters, f))
		}
		require.NoError(t, b.CommitRow())
	}
	require.Equal(t, uint64(n), b.NumRows())
	require.NoError(t, b.Finalise())
}

func openTable(t *testing.T, home string) *Table {
	t.Helper()
	tb, err := OpenTable(home, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb.Close() })
	return tb
}

func TestTable_BuildAndRead(t *testing.T) {
	home := filepath.Join(t.TempDir(), "tbl")
	buildTable(t, home, testRows)

	tb := openTable(t, home)
	require.Equal(t, uint64(testRows), tb.NumRows())
	require.Equal(t, 5, tb.Schema().NumColumns())
	require.NotEmpty(t, tb.Meta().BuildID)
	require.Equal(t, DefaultLimits(), tb.Limits())

	for _, i := range []int{0, 1, 2, 599, testRows - 1} {
		got, err := tb.Row(uint64(i))
		require.NoError(t, err)
		require.Equal(t, expectedRow(i), got, "row %d", i)
	}
	_, err := tb.Row(testRows)
	require.ErrorIs(t, err, ErrRowOutOfRange)

	it, err := tb.Rows("pos", "chrom")
	require.NoError(t, err)
	var n int
	for it.Next() {
		require.Equal(t, []any{int64(n * 10), chroms[n%3]}, it.Row())
		n++
	}
	require.NoError(t, it.Err())
	require.Equal(t, testRows, n)

	_, err = os.Stat(filepath.Join(home, SchemaFile))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, buildPrimaryBase+".btree.meta.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestTableBuilder_Lifecycle(t *testing.T) {
	home := t.TempDir()
	s, c := newTestSchema(t)

	b := NewTableBuilder(home, s, Options{})
	require.ErrorIs(t, b.CommitRow(), ErrNotOpen)
	require.ErrorIs(t, b.Finalise(), ErrNotOpen)

	_, err := OpenTable(home, Options{})
	require.ErrorIs(t, err, ErrNoTable)

	require.NoError(t, b.Open())
	require.NoError(t, b.InsertElements(c.chrom, "X"))
	require.ErrorIs(t, b.InsertElements(c.pos, "7"), ErrTypeMismatch)
	require.ErrorIs(t, b.CommitRow(), ErrColumnNotSet)
	require.NoError(t, b.Abort())

	_, err = OpenTable(home, Options{})
	require.ErrorIs(t, err, ErrNoTable)
	ents, err := os.ReadDir(home)
	require.NoError(t, err)
	require.Empty(t, ents)

	buildTable(t, home, 3)
	again := NewTableBuilder(home, s, Options{})
	require.ErrorIs(t, again.Open(), ErrTableExists)
}

func TestTable_EmptyTable(t *testing.T) {
	home := t.TempDir()
	buildTable(t, home, 0)

	tb := openTable(t, home)
	require.Zero(t, tb.NumRows())
	it, err := tb.Rows()
	require.NoError(t, err)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestIndex_RowsAndCounts(t *testing.T) {
	home := t.TempDir()
	buildTable(t, home, testRows)
	tb := openTable(t, home)

	ix, err := tb.Index("chrom", "pos")
	require.NoError(t, err)
	require.Equal(t, "chrom+pos", ix.Name())
	require.ErrorIs(t, ix.Open(), ErrIndexNotBuilt)

	var last uint64
	require.NoError(t, ix.Build(func(n uint64) { last = n }, 0))
	require.Equal(t, uint64(testRows), last)
	require.NoError(t, ix.Open())

	n, err := ix.NumEntries()
	require.NoError(t, err)
	require.Equal(t, uint64(testRows), n)

	it, err := ix.Rows([]string{"chrom", "pos"}, []any{"2", 5000}, []any{"2", 6000})
	require.NoError(t, err)
	var got []int64
	for it.Next() {
		require.Equal(t, "2", it.Row()[0])
		got = append(got, it.Row()[1].(int64))
	}
	require.NoError(t, it.Err())
	var want []int64
	for i := range testRows {
		if i%3 == 1 && i*10 >= 5000 && i*10 <= 6000 {
			want = append(want, int64(i*10))
		}
	}
	require.Equal(t, want, got)

	bound, err := ix.ParseBound([]string{"2", "5000"})
	require.NoError(t, err)
	require.Equal(t, []any{"2", int64(5000)}, bound)
	_, err = ix.ParseBound([]string{"2", "1", "3"})
	require.ErrorIs(t, err, ErrInvalidValue)
	_, err = ix.ParseBound([]string{"Y"})
	require.ErrorIs(t, err, ErrUnknownEnum)

	counts, err := ix.Counts()
	require.NoError(t, err)
	require.Equal(t, []ValueCount{
		{Value: "1", Count: testRows / 3},
		{Value: "2", Count: testRows / 3},
		{Value: "X", Count: testRows / 3},
	}, counts)

	metas, err := tb.Indexes()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, []string{"chrom", "pos"}, metas[0].Columns)
	assert.Equal(t, tb.Meta().BuildID, metas[0].BuildID)

	same, err := tb.Index("chrom", "pos")
	require.NoError(t, err)
	require.Same(t, ix, same)
	require.True(t, same.IsOpen())
	require.Len(t, tb.indexes, 1)

	require.NoError(t, ix.Drop())
	metas, err = tb.Indexes()
	require.NoError(t, err)
	require.Empty(t, metas)
	require.Empty(t, tb.indexes)

	fresh, err := tb.Index("chrom", "pos")
	require.NoError(t, err)
	require.NotSame(t, ix, fresh)
	require.False(t, fresh.IsOpen())
}

func TestIndex_Stale(t *testing.T) {
	home := t.TempDir()
	buildTable(t, home, 20)

	tb, err := OpenTable(home, Options{})
	require.NoError(t, err)
	ix, err := tb.Index("name")
	require.NoError(t, err)
	require.NoError(t, ix.Build(nil, 0))
	require.NoError(t, tb.Close())

	var meta TableMeta
	path := filepath.Join(home, MetaFile)
	require.NoError(t, util.ReadJSON(path, &meta))
	meta.BuildID = "rebuilt"
	require.NoError(t, util.WriteJSON(path, meta))

	tb = openTable(t, home)
	ix, err = tb.Index("name")
	require.NoError(t, err)
	require.ErrorIs(t, ix.Open(), ErrStaleIndex)
}

func TestBuildIndexes(t *testing.T) {
	home := t.TempDir()
	buildTable(t, home, testRows)
	tb := openTable(t, home)

	var mu sync.Mutex
	final := map[string]uint64{}
	specs := [][]string{{"pos"}, {"name", "qual"}, {"filters"}, {"pos"}}
	require.NoError(t, BuildIndexes(tb, specs, func(name string, n uint64) {
		mu.Lock()
		defer mu.Unlock()
		final[name] = max(final[name], n)
	}))
	require.Equal(t, map[string]uint64{
		"pos":       testRows,
		"name+qual": testRows,
		"filters":   testRows,
	}, final)

	// already built indexes are skipped
	require.NoError(t, BuildIndexes(tb, specs[:1], nil))

	metas, err := tb.Indexes()
	require.NoError(t, err)
	require.Len(t, metas, 3)

	ix, err := tb.Index("filters")
	require.NoError(t, err)
	require.NoError(t, ix.Open())
	it, err := ix.Rows([]string{"filters"}, nil, nil)
	require.NoError(t, err)
	var prevLen int
	for it.Next() {
		f := it.Row()[0].([]int64)
		// rows with no filters sort first, then [-1], then [-1 0]
		require.GreaterOrEqual(t, len(f), prevLen)
		prevLen = len(f)
	}
	require.NoError(t, it.Err())

	_, err = tb.Index("nope")
	require.Error(t, err)
	require.ErrorIs(t, BuildIndexes(tb, [][]string{{"__x"}}, nil), ErrBadIndexName)

	require.NoError(t, tb.Close())
	_, err = tb.Index("pos")
	require.ErrorIs(t, err, ErrTableClosed)
	_, err = tb.Rows()
	require.ErrorIs(t, err, ErrTableClosed)
}
