package btree

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tuannm99/wormtable/internal/alias/util"
	"github.com/tuannm99/wormtable/internal/storage"
)

const (
	metaFileSuffix = ".btree.meta.json"
	metaVersion    = 2
)

// levelState is the right edge of one level of the tree: the page still
// accepting entries and the smallest key below it.
type levelState struct {
	Page     uint32 `json:"page"`
	FirstKey []byte `json:"first_key"`
}

type diskMeta struct {
	Version    int          `json:"version"`
	Root       uint32       `json:"root"`
	Height     int          `json:"height"`
	Count      uint64       `json:"count"`
	NextPageID uint32       `json:"next_page_id"`
	LastKey    []byte       `json:"last_key,omitempty"`
	Levels     []levelState `json:"levels,omitempty"`
}

func metaPath(lfs storage.LocalFileSet) string {
	// meta file lives next to the segments: <Dir>/<Base>.btree.meta.json
	return filepath.Join(lfs.Dir, lfs.Base+metaFileSuffix)
}

func overflowFileSet(lfs storage.LocalFileSet) storage.LocalFileSet {
	return storage.LocalFileSet{Dir: lfs.Dir, Base: lfs.Base + "_ovf", ReadOnly: lfs.ReadOnly}
}

func loadMeta(lfs storage.LocalFileSet) (diskMeta, error) {
	var m diskMeta
	if err := util.ReadJSON(metaPath(lfs), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return diskMeta{}, fmt.Errorf("%w: %s", ErrNotFound, lfs.Base)
		}
		return diskMeta{}, err
	}
	if m.Version != metaVersion {
		return diskMeta{}, fmt.Errorf("%w: meta version %d", ErrCorrupt, m.Version)
	}
	if len(m.Levels) != m.Height {
		return diskMeta{}, fmt.Errorf("%w: %d levels for height %d", ErrCorrupt, len(m.Levels), m.Height)
	}
	return m, nil
}

func (t *Tree) saveMeta() error {
	m := diskMeta{
		Version:    metaVersion,
		Root:       t.root,
		Height:     len(t.levels),
		Count:      t.count,
		NextPageID: t.nextPageID,
		LastKey:    t.lastKey,
		Levels:     t.levels,
	}
	if err := util.WriteJSON(metaPath(t.fs), &m); err != nil {
		return err
	}

	slog.Debug("btree.meta.saved",
		"base", t.fs.Base,
		"root", m.Root,
		"height", m.Height,
		"count", m.Count,
		"nextPageID", m.NextPageID,
	)
	return nil
}
