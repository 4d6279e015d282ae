package index

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomKeys(n int) [][]byte {
	r := rand.New(rand.NewPCG(1, 2))
	seen := make(map[string]bool, n)
	var out [][]byte
	for len(out) < n {
		k := make([]byte, 1+r.IntN(12))
		for i := range k {
			k[i] = byte(r.IntN(4))
		}
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		out = append(out, k)
	}
	return out
}

func drain(t *testing.T, s *sorter) [][]byte {
	t.Helper()
	var out [][]byte
	require.NoError(t, s.Drain(func(k []byte) error {
		out = append(out, bytes.Clone(k))
		return nil
	}))
	return out
}

func TestSorter(t *testing.T) {
	keys := randomKeys(3000)
	want := slices.Clone(keys)
	slices.SortFunc(want, bytes.Compare)

	for _, tc := range []struct {
		name    string
		bufSize int64
		spills  bool
	}{
		{"in memory", 0, false},
		{"spilled", 500, true},
		{"many runs", 20, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newSorter(tc.bufSize, t.TempDir())
			defer s.Close()
			for _, k := range keys {
				require.NoError(t, s.Add(bytes.Clone(k)))
			}
			require.Equal(t, tc.spills, len(s.runs) > 0)
			require.Equal(t, want, drain(t, s))
		})
	}
}

func TestSorter_Empty(t *testing.T) {
	s := newSorter(10, t.TempDir())
	require.Empty(t, drain(t, s))
	require.NoError(t, s.Close())
}
