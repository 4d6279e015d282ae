package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

type FileSet interface {
	OpenSegment(segNo int32) (*os.File, error)
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet represents a local directory + base file name.
// Segments are stored as: Base, Base.1, Base.2, ...
type LocalFileSet struct {
	Dir      string
	Base     string
	ReadOnly bool
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (*os.File, error) {
	path := lfs.Path(segNo)
	if lfs.ReadOnly {
		return os.Open(path)
	}
	if err := os.MkdirAll(lfs.Dir, FileMode0755); err != nil {
		return nil, err
	}
	// RDWR | CREATE (no truncate)
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
}

// Exists reports whether segment 0 is present.
func (lfs LocalFileSet) Exists() (bool, error) {
	_, err := os.Stat(lfs.Path(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// StorageManager maps a logical pageID -> (segment, offset) and keeps the
// segment files it has opened until Close.
type StorageManager struct {
	mu     sync.Mutex
	files  map[string]*os.File
	closed bool
}

func NewStorageManager() *StorageManager {
	return &StorageManager{files: make(map[string]*os.File)}
}

func (sm *StorageManager) locate(pageID uint32) (segNo int32, offset int64) {
	segNo = int32(pageID / MaxPagePerSegment)
	offset = int64(pageID%MaxPagePerSegment) * PageSize
	return segNo, offset
}

func (sm *StorageManager) segment(fs FileSet, segNo int32) (*os.File, error) {
	key := fmt.Sprintf("%v|%d", fs, segNo)
	if lfs, ok := fs.(LocalFileSet); ok {
		key = fmt.Sprintf("%s|%d", lfs.key(), segNo)
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return nil, ErrClosed
	}
	if f, ok := sm.files[key]; ok {
		return f, nil
	}
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return nil, err
	}
	sm.files[key] = f
	return f, nil
}

// ReadPage reads exactly one page (PageSize bytes) into dst.
// If the underlying file is smaller than the requested offset+PageSize,
// the remainder is zero-filled.
func (sm *StorageManager) ReadPage(fs FileSet, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("dst must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(pageID)
	f, err := sm.segment(fs, segNo)
	if err != nil {
		return err
	}
	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return err
	}
	clear(dst[n:])
	return nil
}

// WritePage writes exactly one page (PageSize bytes) from src to disk
// at the location computed from pageID.
func (sm *StorageManager) WritePage(fs FileSet, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("src must be exactly %d bytes", PageSize)
	}
	if lfs, ok := fs.(LocalFileSet); ok && lfs.ReadOnly {
		return ErrReadOnly
	}
	segNo, off := sm.locate(pageID)
	f, err := sm.segment(fs, segNo)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// CountPages computes total pages for a given FileSet by scanning all segments.
func (sm *StorageManager) CountPages(lfs LocalFileSet) (uint32, error) {
	segs, err := lfs.Segments()
	if err != nil {
		return 0, err
	}
	var total uint32
	for _, segNo := range segs {
		info, err := os.Stat(lfs.Path(segNo))
		if err != nil {
			return 0, err
		}
		total += uint32(info.Size() / PageSize)
	}
	return total, nil
}

// Sync flushes every open segment to stable storage.
func (sm *StorageManager) Sync() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	var errs []error
	for _, f := range sm.files {
		if err := f.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all open segments. The manager cannot be used afterwards.
func (sm *StorageManager) Close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return nil
	}
	sm.closed = true
	var errs []error
	for k, f := range sm.files {
		if err := f.Close(); err != nil {
			slog.Warn("storage.close", "segment", k, "err", err)
			errs = append(errs, err)
		}
	}
	sm.files = nil
	return errors.Join(errs...)
}
