package btree

import (
	"bytes"
	"errors"

	"github.com/tuannm99/wormtable/internal/storage"
)

// InternalNode is a thin wrapper around a page used as an internal B+Tree node.
// Each entry encodes (minKey, childPageID).
//
// Semantics:
//
//   - For each child subtree we store: minKey(child), childPageID.
//
//   - Entries are kept in ascending order of minKey.
//
//   - To choose a child for search key K, take the last entry whose minKey
//     is <= K, or the first entry when K is smaller than every minKey.
type InternalNode struct {
	Page *storage.Page
}

// NumKeys returns how many entries (slots) are on this internal node.
func (n *InternalNode) NumKeys() int {
	return n.Page.NumSlots()
}

// EntryAt decodes the i-th internal entry into (key, childPageID).
func (n *InternalNode) EntryAt(i int) ([]byte, uint32, error) {
	data, err := n.Page.ReadTuple(i)
	if err != nil {
		return nil, 0, err
	}
	return decodeInternalEntry(data)
}

// AppendEntry appends a new (key, childPageID) entry at the end of the page.
// It reports false when the page is full.
func (n *InternalNode) AppendEntry(key []byte, child uint32) (bool, error) {
	data := encodeInternalEntry(key, child)
	if !n.Page.Fits(len(data)) {
		return false, nil
	}
	_, err := n.Page.InsertTuple(data)
	return err == nil, err
}

// findChild returns the child page that may contain key.
func (n *InternalNode) findChild(key []byte) (uint32, error) {
	num := n.NumKeys()
	if num == 0 {
		return 0, errors.New("btree: internal node has no entries")
	}
	// first entry with minKey > key
	lo, hi := 1, num
	for lo < hi {
		mid := (lo + hi) / 2
		k, _, err := n.EntryAt(mid)
		if err != nil {
			return 0, err
		}
		if bytes.Compare(k, key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	_, child, err := n.EntryAt(lo - 1)
	return child, err
}
