package btree

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/wormtable/internal/bufferpool"
	"github.com/tuannm99/wormtable/internal/storage"
)

// Options configures a Tree. CacheSize is the page cache budget in bytes.
type Options struct {
	CacheSize int64
	ReadOnly  bool
}

// Tree is an append-built B+Tree over byte keys.
//
// Keys must arrive in strictly increasing order. The loader keeps the right
// edge of every level open (levels[0] is the current leaf, the last entry
// is the root) and fills pages left to right, so no page is ever split or
// rewritten once a sibling has been started. Internal entries carry the
// minimum key of their child.
type Tree struct {
	mu sync.RWMutex

	fs   storage.LocalFileSet
	sm   *storage.StorageManager
	pool *bufferpool.Pool
	ovf  *storage.OverflowManager

	readOnly bool
	closed   bool

	root       uint32
	levels     []levelState
	count      uint64
	nextPageID uint32
	lastKey    []byte
}

// Create makes a new empty tree named base inside dir. It fails with
// ErrExists if a tree of that name is already there.
func Create(dir, base string, opts Options) (*Tree, error) {
	ok, err := Exists(dir, base)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, base)
	}

	t, err := newTree(storage.LocalFileSet{Dir: dir, Base: base}, opts)
	if err != nil {
		return nil, err
	}
	page, err := t.pool.NewPage(0, storage.BTreeLeaf, nextPtrSize)
	if err != nil {
		_ = t.sm.Close()
		return nil, err
	}
	if err := t.pool.Unpin(page, true); err != nil {
		_ = t.sm.Close()
		return nil, err
	}
	t.levels = []levelState{{Page: 0}}
	t.nextPageID = 1

	if err := t.persist(); err != nil {
		_ = t.sm.Close()
		return nil, err
	}
	slog.Info("btree.create", "dir", dir, "base", base)
	return t, nil
}

// Open opens an existing tree. A writable tree continues appending after
// its last key.
func Open(dir, base string, opts Options) (*Tree, error) {
	lfs := storage.LocalFileSet{Dir: dir, Base: base, ReadOnly: opts.ReadOnly}
	m, err := loadMeta(lfs)
	if err != nil {
		return nil, err
	}
	t, err := newTree(lfs, opts)
	if err != nil {
		return nil, err
	}
	t.root = m.Root
	t.levels = m.Levels
	t.count = m.Count
	t.nextPageID = m.NextPageID
	t.lastKey = m.LastKey

	slog.Debug("btree.open",
		"base", base,
		"readOnly", opts.ReadOnly,
		"height", len(t.levels),
		"count", t.count,
	)
	return t, nil
}

func newTree(lfs storage.LocalFileSet, opts Options) (*Tree, error) {
	sm := storage.NewStorageManager()
	ovf, err := storage.NewOverflowManager(sm, overflowFileSet(lfs))
	if err != nil {
		_ = sm.Close()
		return nil, err
	}
	return &Tree{
		fs:       lfs,
		sm:       sm,
		pool:     bufferpool.NewPool(sm, lfs, bufferpool.CapacityFor(opts.CacheSize)),
		ovf:      ovf,
		readOnly: lfs.ReadOnly,
	}, nil
}

// persist writes dirty pages, syncs the files and then the meta file.
func (t *Tree) persist() error {
	if err := t.pool.FlushAll(); err != nil {
		return err
	}
	if err := t.sm.Sync(); err != nil {
		return err
	}
	return t.saveMeta()
}

// Close releases the tree. A writable tree is flushed first.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if !t.readOnly {
		if err := t.persist(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.sm.Close(); err != nil {
		errs = append(errs, err)
	}
	slog.Debug("btree.close", "base", t.fs.Base, "count", t.count)
	return errors.Join(errs...)
}

// Len is the number of keys in the tree.
func (t *Tree) Len() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Height is the number of levels, 1 for a tree that is a single leaf.
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.levels)
}

func (t *Tree) Root() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// LastKey returns a copy of the largest key, nil for an empty tree.
func (t *Tree) LastKey() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return bytes.Clone(t.lastKey)
}

func (t *Tree) Name() string { return t.fs.Base }

// Append adds key -> value. key must be greater than every key already in
// the tree. Large values go to the overflow file; the key always stays in
// the leaf.
func (t *Tree) Append(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.closed:
		return ErrClosed
	case t.readOnly:
		return ErrReadOnly
	case len(key) == 0:
		return ErrEmptyKey
	case len(key) > MaxKeySize:
		return fmt.Errorf("%w: %d > %d", ErrKeyTooLarge, len(key), MaxKeySize)
	case t.count > 0 && bytes.Compare(key, t.lastKey) <= 0:
		return fmt.Errorf("%w: %x after %x", ErrOutOfOrderInsert, key, t.lastKey)
	}

	entry := encodeLeafEntry(key, value)
	overflow := false
	if len(entry) > maxInlineEntry() && len(value) > storage.OverflowRefSize {
		ref, err := t.ovf.Write(value)
		if err != nil {
			return err
		}
		entry = encodeLeafEntry(key, overflowValue(ref))
		overflow = true
	}

	if err := t.appendLeaf(key, entry, overflow); err != nil {
		return err
	}
	t.lastKey = bytes.Clone(key)
	t.count++
	return nil
}

func (t *Tree) appendLeaf(key, entry []byte, overflow bool) error {
	cur := &t.levels[0]
	page, err := t.pool.GetPage(cur.Page)
	if err != nil {
		return err
	}
	leaf := &LeafNode{Page: page}
	if page.Fits(len(entry)) {
		if leaf.NumKeys() == 0 {
			cur.FirstKey = bytes.Clone(key)
		}
		err := leaf.AppendEntry(entry, overflow)
		return errors.Join(err, t.pool.Unpin(page, err == nil))
	}

	newID := t.allocPage()
	next, err := t.pool.NewPage(newID, storage.BTreeLeaf, nextPtrSize)
	if err != nil {
		return errors.Join(err, t.pool.Unpin(page, false))
	}
	leaf.setNext(newID)
	if err := t.pool.Unpin(page, true); err != nil {
		return errors.Join(err, t.pool.Unpin(next, true))
	}
	err = (&LeafNode{Page: next}).AppendEntry(entry, overflow)
	if err := errors.Join(err, t.pool.Unpin(next, true)); err != nil {
		return err
	}
	logNewLeaf(cur.Page, newID, key)
	return t.split(0, key, newID)
}

func (t *Tree) allocPage() uint32 {
	id := t.nextPageID
	t.nextPageID++
	return id
}

// split closes the right edge of level l and makes newPage, whose first key
// is key, the new right edge. The parent level receives an entry for it,
// growing a new root if l was the top.
func (t *Tree) split(l int, key []byte, newPage uint32) error {
	if l == len(t.levels)-1 {
		old := t.levels[l]
		rootID := t.allocPage()
		page, err := t.pool.NewPage(rootID, storage.BTreeInternal, 0)
		if err != nil {
			return err
		}
		_, err = (&InternalNode{Page: page}).AppendEntry(old.FirstKey, old.Page)
		if err := errors.Join(err, t.pool.Unpin(page, true)); err != nil {
			return err
		}
		t.levels = append(t.levels, levelState{Page: rootID, FirstKey: bytes.Clone(old.FirstKey)})
		t.root = rootID

		slog.Debug("btree.bulk.newRoot",
			"base", t.fs.Base,
			"root", rootID,
			"height", len(t.levels),
		)
	}
	t.levels[l] = levelState{Page: newPage, FirstKey: bytes.Clone(key)}
	return t.insertInternal(l+1, key, newPage)
}

func (t *Tree) insertInternal(l int, key []byte, child uint32) error {
	page, err := t.pool.GetPage(t.levels[l].Page)
	if err != nil {
		return err
	}
	ok, err := (&InternalNode{Page: page}).AppendEntry(key, child)
	if err := errors.Join(err, t.pool.Unpin(page, ok)); err != nil {
		return err
	}
	if ok {
		return nil
	}

	newID := t.allocPage()
	sibling, err := t.pool.NewPage(newID, storage.BTreeInternal, 0)
	if err != nil {
		return err
	}
	ok, err = (&InternalNode{Page: sibling}).AppendEntry(key, child)
	if err := errors.Join(err, t.pool.Unpin(sibling, true)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: entry does not fit an empty internal page", ErrCorrupt)
	}
	slog.Debug("btree.bulk.newInternal",
		"level", l,
		"pageID", newID,
	)
	return t.split(l, key, newID)
}

// findLeaf descends from the root to the leaf whose range covers key.
func (t *Tree) findLeaf(key []byte) (uint32, error) {
	pageID := t.root
	for range len(t.levels) - 1 {
		page, err := t.pool.GetPage(pageID)
		if err != nil {
			return 0, err
		}
		if page.Kind() != storage.BTreeInternal {
			_ = t.pool.Unpin(page, false)
			return 0, fmt.Errorf("%w: page %d is %s, want internal", ErrCorrupt, pageID, page.Kind())
		}
		child, err := (&InternalNode{Page: page}).findChild(key)
		if err := errors.Join(err, t.pool.Unpin(page, false)); err != nil {
			return 0, err
		}
		pageID = child
	}
	return pageID, nil
}

// Get returns a copy of the value stored under key.
func (t *Tree) Get(key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrClosed
	}

	leafID, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	page, err := t.pool.GetPage(leafID)
	if err != nil {
		return nil, err
	}
	leaf := &LeafNode{Page: page}
	i, err := leaf.lowerBound(key)
	if err != nil {
		return nil, errors.Join(err, t.pool.Unpin(page, false))
	}
	if i == leaf.NumKeys() {
		return nil, errors.Join(ErrKeyNotFound, t.pool.Unpin(page, false))
	}
	k, v, overflow, err := leaf.EntryAt(i)
	if err != nil {
		return nil, errors.Join(err, t.pool.Unpin(page, false))
	}
	if !bytes.Equal(k, key) {
		return nil, errors.Join(ErrKeyNotFound, t.pool.Unpin(page, false))
	}
	v = bytes.Clone(v)
	if err := t.pool.Unpin(page, false); err != nil {
		return nil, err
	}
	if overflow {
		return t.readOverflow(v)
	}
	return v, nil
}

func (t *Tree) readOverflow(raw []byte) ([]byte, error) {
	ref, err := storage.DecodeOverflowRef(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t.ovf.Read(ref)
}
