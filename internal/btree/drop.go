package btree

import (
	"errors"
	"os"

	"github.com/tuannm99/wormtable/internal/storage"
)

// Exists reports whether a tree with this base name is present in dir.
func Exists(dir, base string) (bool, error) {
	lfs := storage.LocalFileSet{Dir: dir, Base: base}
	if _, err := os.Stat(metaPath(lfs)); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return lfs.Exists()
}

// Drop removes all segments, the overflow file and the meta file of a
// tree. Dropping a missing tree is not an error. The tree must be closed.
func Drop(dir, base string) error {
	lfs := storage.LocalFileSet{Dir: dir, Base: base}
	if err := storage.RemoveAllSegments(lfs); err != nil {
		return err
	}
	if err := storage.RemoveAllSegments(overflowFileSet(lfs)); err != nil {
		return err
	}
	if err := os.Remove(metaPath(lfs)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Rename moves a closed tree to a new base name within dir. The meta file
// moves last, so a tree is only visible under newBase once complete.
func Rename(dir, oldBase, newBase string) error {
	if ok, err := Exists(dir, newBase); err != nil {
		return err
	} else if ok {
		return ErrExists
	}
	from := storage.LocalFileSet{Dir: dir, Base: oldBase}
	to := storage.LocalFileSet{Dir: dir, Base: newBase}
	if err := storage.RenameAllSegments(from, to); err != nil {
		return err
	}
	if err := storage.RenameAllSegments(overflowFileSet(from), overflowFileSet(to)); err != nil {
		return err
	}
	return os.Rename(metaPath(from), metaPath(to))
}
