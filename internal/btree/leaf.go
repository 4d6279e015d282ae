package btree

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/tuannm99/wormtable/internal/alias/bx"
	"github.com/tuannm99/wormtable/internal/storage"
)

// LeafNode is a thin wrapper around storage.Page for leaf-level entries.
// Entries are appended in key order, so slot order is key order.
type LeafNode struct {
	Page *storage.Page
}

func (n *LeafNode) NumKeys() int { return n.Page.NumSlots() }

// Next returns the page id of the following leaf, 0 if this is the last.
func (n *LeafNode) Next() uint32 { return bx.U32(n.Page.Special()) }

func (n *LeafNode) setNext(pageID uint32) { bx.PutU32(n.Page.Special(), pageID) }

func (n *LeafNode) KeyAt(i int) ([]byte, error) {
	k, _, _, err := n.EntryAt(i)
	return k, err
}

// EntryAt returns the key and raw value of slot i; overflow reports whether
// the value is an overflow reference. Slices alias the page.
func (n *LeafNode) EntryAt(i int) (key, value []byte, overflow bool, err error) {
	data, flags, err := n.Page.Tuple(i)
	if err != nil {
		return nil, nil, false, err
	}
	key, value, err = decodeLeafEntry(data)
	return key, value, flags&storage.SlotFlagOverflow != 0, err
}

func (n *LeafNode) AppendEntry(entry []byte, overflow bool) error {
	flags := storage.SlotFlagNormal
	if overflow {
		flags = storage.SlotFlagOverflow
	}
	_, err := n.Page.InsertTupleFlags(entry, flags)
	return err
}

// lowerBound returns the first slot whose key is >= target.
func (n *LeafNode) lowerBound(target []byte) (int, error) {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := n.KeyAt(mid)
		if err != nil {
			return 0, err
		}
		if bytes.Compare(k, target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func logNewLeaf(prev, page uint32, firstKey []byte) {
	slog.Debug("btree.bulk.newLeaf",
		"prev", prev,
		"pageID", page,
		"firstKey", fmt.Sprintf("%x", firstKey),
	)
}
