package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	ents, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, ents, 1)
}

func TestJSON_RoundTrip(t *testing.T) {
	type meta struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, WriteJSON(path, meta{Name: "a", N: 3}))

	var got meta
	require.NoError(t, ReadJSON(path, &got))
	require.Equal(t, meta{Name: "a", N: 3}, got)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	require.Error(t, ReadJSON(path, &got))
}
