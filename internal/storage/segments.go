package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Path is the file holding segment segNo: Base for segment 0, Base.N after.
func (lfs LocalFileSet) Path(segNo int32) string {
	name := lfs.Base
	if segNo > 0 {
		name += "." + strconv.Itoa(int(segNo))
	}
	return filepath.Join(lfs.Dir, name)
}

// Segments lists the segment numbers present on disk, ascending. A missing
// directory has none.
func (lfs LocalFileSet) Segments() ([]int32, error) {
	ents, err := os.ReadDir(lfs.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var segs []int32
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if e.Name() == lfs.Base {
			segs = append(segs, 0)
			continue
		}
		suf, ok := strings.CutPrefix(e.Name(), lfs.Base+".")
		if !ok {
			continue
		}
		// Base_ovf or Base.btree.meta.json are other files, not segments.
		if n, err := strconv.ParseInt(suf, 10, 32); err == nil && n > 0 {
			segs = append(segs, int32(n))
		}
	}
	slices.Sort(segs)
	return segs, nil
}

// key identifies the file set in the storage manager's open file table.
func (lfs LocalFileSet) key() string {
	return filepath.Clean(lfs.Dir) + "|" + lfs.Base
}

func RemoveAllSegments(lfs LocalFileSet) error {
	segs, err := lfs.Segments()
	if err != nil {
		return err
	}
	for _, n := range segs {
		if err := os.Remove(lfs.Path(n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// RenameAllSegments moves every segment of from to to. Nothing is moved if
// any target already exists.
func RenameAllSegments(from, to LocalFileSet) error {
	segs, err := from.Segments()
	if err != nil || len(segs) == 0 {
		return err
	}
	if err := os.MkdirAll(to.Dir, FileMode0755); err != nil {
		return err
	}
	for _, n := range segs {
		if _, err := os.Stat(to.Path(n)); err == nil {
			return fmt.Errorf("storage: rename %s: %w: %s", from.Base, os.ErrExist, to.Path(n))
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	for _, n := range segs {
		if err := os.Rename(from.Path(n), to.Path(n)); err != nil {
			return err
		}
	}
	return nil
}
