package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/wormtable/internal/storage"
)

const (
	DefaultCapacity = 128
	// MinCapacity keeps a root-to-leaf path plus a cursor pinned at once.
	MinCapacity = 8
)

var (
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPageInPool  = errors.New("bufferpool: page already cached")
)

type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

type Manager interface {
	GetPage(pageID uint32) (*storage.Page, error)
	NewPage(pageID uint32, kind storage.PageType, special int) (*storage.Page, error)
	Unpin(page *storage.Page, dirty bool) error
	FlushAll() error
}

// CapacityFor converts a cache size in bytes to a number of frames.
func CapacityFor(cacheSize int64) int {
	n := cacheSize / storage.PageSize
	if n < MinCapacity {
		return MinCapacity
	}
	return int(n)
}

type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    int32
}

var _ Manager = (*Pool)(nil)

// Pool caches the pages of one file set.
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame       // len == capacity, nil == free slot
	pageTable map[uint32]int // PageID -> frame index

	replacementPolicy Replacer

	hits, misses uint64
}

func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		sm:                sm,
		fs:                fs,
		frames:            make([]*Frame, capacity),
		pageTable:         make(map[uint32]int),
		replacementPolicy: newClock(capacity),
	}
}

// GetPage returns the page pinned. Pages must have been written before.
func (p *Pool) GetPage(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		p.hits++
		f := p.frames[idx]
		f.Pin++
		p.replacementPolicy.RecordAccess(idx)
		if f.Pin == 1 {
			p.replacementPolicy.SetEvictable(idx, false)
		}
		return f.Page, nil
	}

	p.misses++
	idx, buf, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	if err := p.sm.ReadPage(p.fs, pageID, buf); err != nil {
		p.releaseFrame(idx)
		return nil, err
	}
	page, err := storage.WrapPage(buf)
	if err != nil {
		p.releaseFrame(idx)
		return nil, fmt.Errorf("bufferpool: page %d: %w", pageID, err)
	}
	p.install(idx, pageID, page, false)
	return page, nil
}

// NewPage formats a fresh page in the pool without reading it from disk.
// The page is returned pinned and dirty.
func (p *Pool) NewPage(pageID uint32, kind storage.PageType, special int) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pageTable[pageID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrPageInPool, pageID)
	}
	idx, buf, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	page, err := storage.NewPage(buf, pageID, kind, special)
	if err != nil {
		p.releaseFrame(idx)
		return nil, err
	}
	p.install(idx, pageID, page, true)
	return page, nil
}

// acquireFrame finds a free slot or evicts an unpinned frame, writing it
// back if dirty. The returned buffer may be reused memory.
func (p *Pool) acquireFrame() (int, []byte, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, make([]byte, storage.PageSize), nil
		}
	}

	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return -1, nil, ErrNoFreeFrame
	}
	victim := p.frames[victimIdx]
	if victim.Dirty {
		if err := p.sm.WritePage(p.fs, victim.PageID, victim.Page.Buf); err != nil {
			// Put victim back as evictable
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
			return -1, nil, err
		}
	}
	delete(p.pageTable, victim.PageID)
	p.frames[victimIdx] = nil
	return victimIdx, victim.Page.Buf, nil
}

func (p *Pool) releaseFrame(idx int) {
	p.frames[idx] = nil
	p.replacementPolicy.Remove(idx)
}

func (p *Pool) install(idx int, pageID uint32, page *storage.Page, dirty bool) {
	p.frames[idx] = &Frame{PageID: pageID, Page: page, Dirty: dirty, Pin: 1}
	p.pageTable[pageID] = idx
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
}

func (p *Pool) Unpin(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	pageID := page.PageID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacementPolicy.SetEvictable(idx, true)
		}
	}
	return nil
}

func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.sm.WritePage(p.fs, f.PageID, f.Page.Buf); err != nil {
			return err
		}
		f.Dirty = false
	}
	slog.Debug("bufferpool.flush",
		"fs", p.fs,
		"hits", p.hits,
		"misses", p.misses,
	)
	return nil
}

// Pinned counts frames that are currently pinned.
func (p *Pool) Pinned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, f := range p.frames {
		if f != nil && f.Pin > 0 {
			n++
		}
	}
	return n
}
