package index

import (
	"bufio"
	"bytes"
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/tuannm99/wormtable/internal/storage"
)

// DefaultSortBufferSize is the memory a build may hold before it spills
// sorted runs to disk.
const DefaultSortBufferSize = 64 * storage.OneMB

// maxFanIn bounds the runs merged, and so the files open, at once.
const maxFanIn = 64

// sorter sorts unique byte keys. Keys are kept in memory until bufSize is
// exceeded; every full buffer is then sorted and written as a run file, and
// the runs are merged at the end.
type sorter struct {
	bufSize int64
	tempDir string

	keys  [][]byte
	bytes int64

	runDir string
	runs   []string
	seq    int
}

func newSorter(bufSize int64, tempDir string) *sorter {
	if bufSize <= 0 {
		bufSize = DefaultSortBufferSize
	}
	return &sorter{bufSize: bufSize, tempDir: tempDir}
}

func (s *sorter) Add(key []byte) error {
	s.keys = append(s.keys, key)
	s.bytes += int64(len(key))
	if s.bytes >= s.bufSize {
		return s.spill()
	}
	return nil
}

func (s *sorter) sortBuffer() {
	slices.SortFunc(s.keys, bytes.Compare)
}

func (s *sorter) spill() error {
	if len(s.keys) == 0 {
		return nil
	}
	if s.runDir == "" {
		dir := filepath.Join(s.tempDir, "__sort_"+uuid.NewString())
		if err := os.MkdirAll(dir, storage.FileMode0755); err != nil {
			return err
		}
		s.runDir = dir
	}
	s.sortBuffer()

	path := s.nextRun()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, k := range s.keys {
		if err := writeKey(w, k); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := errors.Join(w.Flush(), f.Close()); err != nil {
		return err
	}

	slog.Debug("index.sort.spill",
		"run", len(s.runs),
		"keys", len(s.keys),
		"bytes", s.bytes,
	)
	s.runs = append(s.runs, path)
	clear(s.keys)
	s.keys = s.keys[:0]
	s.bytes = 0
	return nil
}

// Drain calls fn with every key in ascending order.
func (s *sorter) Drain(fn func(key []byte) error) error {
	if len(s.runs) == 0 {
		s.sortBuffer()
		for _, k := range s.keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		return nil
	}
	if err := s.spill(); err != nil {
		return err
	}
	for len(s.runs) > maxFanIn {
		if err := s.compact(); err != nil {
			return err
		}
	}
	return s.merge(s.runs, fn)
}

// compact merges the oldest maxFanIn runs into one.
func (s *sorter) compact() error {
	group := s.runs[:maxFanIn]
	path := s.nextRun()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	err = s.merge(group, func(key []byte) error { return writeKey(w, key) })
	if err := errors.Join(err, w.Flush(), f.Close()); err != nil {
		return err
	}
	for _, p := range group {
		_ = os.Remove(p)
	}
	s.runs = append(s.runs[maxFanIn:], path)
	return nil
}

func (s *sorter) nextRun() string {
	s.seq++
	return filepath.Join(s.runDir, fmt.Sprintf("run-%05d", s.seq))
}

func writeKey(w *bufio.Writer, key []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(key)
	return err
}

func (s *sorter) merge(runs []string, fn func(key []byte) error) error {
	h := &runHeap{}
	defer h.close()
	for _, path := range runs {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		r := &runReader{f: f, r: bufio.NewReader(f)}
		h.readers = append(h.readers, r)
		ok, err := r.next()
		if err != nil {
			return err
		}
		if ok {
			h.items = append(h.items, r)
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		r := h.items[0]
		if err := fn(r.key); err != nil {
			return err
		}
		ok, err := r.next()
		if err != nil {
			return err
		}
		if ok {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return nil
}

// Close removes the run files.
func (s *sorter) Close() error {
	s.keys = nil
	if s.runDir == "" {
		return nil
	}
	err := os.RemoveAll(s.runDir)
	s.runDir, s.runs = "", nil
	return err
}

type runReader struct {
	f   *os.File
	r   *bufio.Reader
	key []byte
}

func (rr *runReader) next() (bool, error) {
	n, err := binary.ReadUvarint(rr.r)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(rr.r, key); err != nil {
		return false, fmt.Errorf("index: truncated sort run %s: %w", rr.f.Name(), err)
	}
	rr.key = key
	return true, nil
}

var _ heap.Interface = (*runHeap)(nil)

// runHeap orders open runs by their current key.
type runHeap struct {
	items   []*runReader
	readers []*runReader
}

func (h *runHeap) Len() int           { return len(h.items) }
func (h *runHeap) Less(i, j int) bool { return bytes.Compare(h.items[i].key, h.items[j].key) < 0 }
func (h *runHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *runHeap) Push(x any) { h.items = append(h.items, x.(*runReader)) }

func (h *runHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

func (h *runHeap) close() {
	for _, r := range h.readers {
		_ = r.f.Close()
	}
}
