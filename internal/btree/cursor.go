package btree

import (
	"bytes"
	"errors"
)

// Cursor walks leaf entries in key order. It copies the current entry and
// holds no page pins between calls.
type Cursor struct {
	t     *Tree
	page  uint32
	slot  int
	valid bool
	err   error

	key, raw []byte
	overflow bool
}

// First returns a cursor on the smallest key.
func (t *Tree) First() *Cursor {
	c := &Cursor{t: t}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		c.err = ErrClosed
		return c
	}
	c.page = 0
	c.load()
	return c
}

// Seek returns a cursor on the first key >= key.
func (t *Tree) Seek(key []byte) *Cursor {
	c := &Cursor{t: t}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		c.err = ErrClosed
		return c
	}
	leafID, err := t.findLeaf(key)
	if err != nil {
		c.err = err
		return c
	}
	page, err := t.pool.GetPage(leafID)
	if err != nil {
		c.err = err
		return c
	}
	i, err := (&LeafNode{Page: page}).lowerBound(key)
	if err := errors.Join(err, t.pool.Unpin(page, false)); err != nil {
		c.err = err
		return c
	}
	c.page, c.slot = leafID, i
	c.load()
	return c
}

// load positions on the entry at (page, slot), following next pointers
// past exhausted leaves. Caller holds the tree read lock.
func (c *Cursor) load() {
	c.valid = false
	for {
		page, err := c.t.pool.GetPage(c.page)
		if err != nil {
			c.err = err
			return
		}
		leaf := &LeafNode{Page: page}
		if c.slot < leaf.NumKeys() {
			k, v, ovf, err := leaf.EntryAt(c.slot)
			if err == nil {
				c.key, c.raw, c.overflow = bytes.Clone(k), bytes.Clone(v), ovf
				c.valid = true
			}
			c.err = errors.Join(err, c.t.pool.Unpin(page, false))
			c.valid = c.valid && c.err == nil
			return
		}
		next := leaf.Next()
		if err := c.t.pool.Unpin(page, false); err != nil {
			c.err = err
			return
		}
		if next == 0 {
			return
		}
		c.page, c.slot = next, 0
	}
}

func (c *Cursor) Valid() bool { return c.valid }
func (c *Cursor) Err() error  { return c.err }

// Key is the current key. The slice belongs to the caller.
func (c *Cursor) Key() []byte { return c.key }

// Value loads the current value, reading the overflow chain if needed.
func (c *Cursor) Value() ([]byte, error) {
	if !c.valid {
		return nil, ErrKeyNotFound
	}
	if !c.overflow {
		return c.raw, nil
	}
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()
	if c.t.closed {
		return nil, ErrClosed
	}
	return c.t.readOverflow(c.raw)
}

// Next advances to the following key and reports whether there is one.
func (c *Cursor) Next() bool {
	if !c.valid {
		return false
	}
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()
	if c.t.closed {
		c.valid, c.err = false, ErrClosed
		return false
	}
	c.slot++
	c.load()
	return c.valid
}
