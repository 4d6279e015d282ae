package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/primary"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

type memStore struct {
	rows    []primary.Record
	batches int
}

func (m *memStore) NumRows() uint64 { return uint64(len(m.rows)) }

func (m *memStore) WriteBatch(recs []primary.Record) error {
	for _, r := range recs {
		m.rows = append(m.rows, primary.Record{ID: r.ID, Data: append([]byte(nil), r.Data...)})
	}
	m.batches++
	return nil
}

type fixture struct {
	schema *schema.Schema
	codec  *codec.Codec
	id     *schema.Column
	vals   *schema.Column
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	id, err := schema.NewIntColumn("id", "", 4, 1)
	require.NoError(t, err)
	vals, err := schema.NewFloatColumn("vals", "", 8, schema.Variable)
	require.NoError(t, err)
	s, err := schema.NewSchema(schema.DefaultLimits(), id, vals)
	require.NoError(t, err)
	cd, err := codec.New(schema.DefaultLimits())
	require.NoError(t, err)
	return fixture{schema: s, codec: cd, id: id, vals: vals}
}

func TestConfig_Validate(t *testing.T) {
	f := newFixture(t)
	store := &memStore{}

	_, err := New(store, f.schema, f.codec, Config{BufferSize: 100, MaxRows: 10})
	require.ErrorIs(t, err, ErrBadConfig)
	require.ErrorIs(t, err, schema.ErrInvalidValue)

	_, err = New(store, f.schema, f.codec, Config{BufferSize: 1 << 20, MaxRows: 0})
	require.ErrorIs(t, err, ErrBadConfig)

	_, err = New(store, f.schema, f.codec, DefaultConfig())
	require.NoError(t, err)
}

func TestWriter_CommitAndFlush(t *testing.T) {
	f := newFixture(t)
	store := &memStore{}
	w, err := New(store, f.schema, f.codec, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, row.Empty, w.State())

	for i := range 10 {
		require.NoError(t, w.InsertElements(f.vals, []float64{float64(i), 0.5}))
		require.NoError(t, w.InsertEncodedElements(f.id, []byte(" 7 ")))
		require.Equal(t, row.Assembling, w.State())
		// overwrite
		require.NoError(t, w.InsertElements(f.id, i))
		require.NoError(t, w.CommitRow())
		require.Equal(t, row.Committed, w.State())
	}
	require.Equal(t, uint64(10), w.NumRows())
	require.Equal(t, 10, w.Pending())
	require.Empty(t, store.rows)

	require.NoError(t, w.Flush())
	require.Equal(t, row.Flushed, w.State())
	require.Len(t, store.rows, 10)
	require.NoError(t, w.Flush())
	require.Equal(t, 1, store.batches)

	for i, rec := range store.rows {
		require.Equal(t, uint64(i), rec.ID)
		data, n, err := row.Column(rec.Data, f.id)
		require.NoError(t, err)
		assert.Equal(t, int64(i), f.codec.Decode(f.id, data, n))
		data, n, err = row.Column(rec.Data, f.vals)
		require.NoError(t, err)
		assert.Equal(t, []float64{float64(i), 0.5}, f.codec.Decode(f.vals, data, n))
	}
}

func TestWriter_RejectedInsertKeepsRow(t *testing.T) {
	f := newFixture(t)
	store := &memStore{}
	w, err := New(store, f.schema, f.codec, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, w.InsertElements(f.id, 42))
	require.ErrorIs(t, w.InsertElements(f.id, 1.5), schema.ErrTypeMismatch)
	require.ErrorIs(t, w.InsertEncodedElements(f.id, []byte("1;2")), schema.ErrInvalidValue)
	require.ErrorIs(t, w.InsertEncodedElements(f.id, []byte("9999999999")), schema.ErrInvalidValue)
	require.NoError(t, w.CommitRow())
	require.NoError(t, w.Flush())

	data, n, err := row.Column(store.rows[0].Data, f.id)
	require.NoError(t, err)
	require.Equal(t, int64(42), f.codec.Decode(f.id, data, n))
	// unset variable column is stored empty
	_, n, err = row.Column(store.rows[0].Data, f.vals)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWriter_FixedColumnRequired(t *testing.T) {
	f := newFixture(t)
	w, err := New(&memStore{}, f.schema, f.codec, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, w.InsertElements(f.vals, 1.0))
	require.ErrorIs(t, w.CommitRow(), row.ErrColumnNotSet)
	require.Zero(t, w.NumRows())

	require.NoError(t, w.InsertElements(f.id, 1))
	require.NoError(t, w.CommitRow())
	// a second commit without new values is an empty row
	require.ErrorIs(t, w.CommitRow(), row.ErrColumnNotSet)
	require.Equal(t, uint64(1), w.NumRows())
}

func TestWriter_AutoFlush(t *testing.T) {
	f := newFixture(t)

	t.Run("max rows", func(t *testing.T) {
		store := &memStore{}
		w, err := New(store, f.schema, f.codec, Config{BufferSize: 1 << 20, MaxRows: 3})
		require.NoError(t, err)
		for i := range 7 {
			require.NoError(t, w.InsertElements(f.id, i))
			require.NoError(t, w.CommitRow())
		}
		require.Len(t, store.rows, 6)
		require.Equal(t, 2, store.batches)
		require.Equal(t, 1, w.Pending())
	})

	t.Run("buffer size", func(t *testing.T) {
		store := &memStore{}
		// room for the max row size plus two small rows
		lim := f.codec.Limits()
		w, err := New(store, f.schema, f.codec, Config{BufferSize: lim.MaxRowSize + 20, MaxRows: 1000})
		require.NoError(t, err)
		// each row: 4 byte id + 4 byte header
		for i := range 3 {
			require.NoError(t, w.InsertElements(f.id, i))
			require.NoError(t, w.CommitRow())
		}
		require.Len(t, store.rows, 3)
		require.Zero(t, w.Pending())
	})
}

func TestWriter_ContinuesFromStore(t *testing.T) {
	f := newFixture(t)
	store := &memStore{}
	require.NoError(t, store.WriteBatch([]primary.Record{{ID: 0, Data: []byte{1}}}))

	w, err := New(store, f.schema, f.codec, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, w.InsertElements(f.id, 5))
	require.NoError(t, w.CommitRow())
	require.NoError(t, w.Flush())
	require.Equal(t, uint64(1), store.rows[1].ID)
}

// Filling variable columns with the maximum number of 8 byte elements
// reaches the row size limit; the column that would cross it is refused.
func TestWriter_RowSizeLimit(t *testing.T) {
	lim := schema.DefaultLimits()
	full := make([]int64, lim.MaxNumElements)
	for i := range full {
		full[i] = int64(i)
	}

	perColumn := 8*lim.MaxNumElements + schema.VariableOverhead
	fit := lim.MaxRowSize / perColumn
	cols := make([]*schema.Column, fit+1)
	for i := range cols {
		c, err := schema.NewIntColumn("c"+string(rune('a'+i%26))+string(rune('a'+i/26)), "", 8, schema.Variable)
		require.NoError(t, err)
		cols[i] = c
	}
	s, err := schema.NewSchema(lim, cols...)
	require.NoError(t, err)
	cd, err := codec.New(lim)
	require.NoError(t, err)

	store := &memStore{}
	w, err := New(store, s, cd, DefaultConfig())
	require.NoError(t, err)
	for _, c := range cols[:fit] {
		require.NoError(t, w.InsertElements(c, full))
	}
	require.ErrorIs(t, w.InsertElements(cols[fit], full), schema.ErrRowTooLarge)
	require.NoError(t, w.CommitRow())
	require.NoError(t, w.Flush())
	require.Len(t, store.rows, 1)
	require.LessOrEqual(t, len(store.rows[0].Data), lim.MaxRowSize)
}

func TestWriter_WideCharColumns(t *testing.T) {
	fixed, err := schema.NewColumn("code", "", schema.Char, 2, 3)
	require.NoError(t, err)
	seq, err := schema.NewColumn("seq", "", schema.Char, 3, schema.Variable)
	require.NoError(t, err)
	s, err := schema.NewSchema(schema.DefaultLimits(), fixed, seq)
	require.NoError(t, err)
	cd, err := codec.New(schema.DefaultLimits())
	require.NoError(t, err)

	store := &memStore{}
	w, err := New(store, s, cd, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, w.InsertEncodedElements(fixed, []byte("ab")))
	require.NoError(t, w.InsertElements(seq, "ACGTA"))
	require.NoError(t, w.CommitRow())
	require.NoError(t, w.InsertElements(fixed, "abc"))
	require.NoError(t, w.CommitRow())
	require.NoError(t, w.Flush())
	require.Len(t, store.rows, 2)

	want := [][]any{{"ab", "ACGTA"}, {"abc", ""}}
	for i, rec := range store.rows {
		for j, c := range s.Columns() {
			data, n, err := row.Column(rec.Data, c)
			require.NoError(t, err)
			assert.Equal(t, want[i][j], cd.Decode(c, data, n), "row %d column %s", i, c.Name())
		}
	}
}

func TestWriter_WithPrimaryStore(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	ps, err := primary.Create(dir, "primary", 0)
	require.NoError(t, err)

	w, err := New(ps, f.schema, f.codec, Config{BufferSize: 1 << 17, MaxRows: 64})
	require.NoError(t, err)
	for i := range 1000 {
		require.NoError(t, w.InsertElements(f.id, i))
		require.NoError(t, w.InsertEncodedElements(f.vals, []byte("1.5;2.5;")))
		require.NoError(t, w.CommitRow())
	}
	require.NoError(t, w.Flush())
	require.NoError(t, ps.Close())

	ro, err := primary.Open(dir, "primary", 0, primary.ReadOnly)
	require.NoError(t, err)
	defer ro.Close()
	require.Equal(t, uint64(1000), ro.NumRows())

	packed, err := ro.Get(999)
	require.NoError(t, err)
	data, n, err := row.Column(packed, f.vals)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, 2.5}, f.codec.Decode(f.vals, data, n))
}
