package btree

import "github.com/tuannm99/wormtable/internal/storage"

const (
	// nextPtrSize is the special area of a leaf: the page id of the next
	// leaf, 0 for the last one (page 0 is always the first leaf).
	nextPtrSize = 4

	// MaxKeySize bounds keys so that an internal page always holds at
	// least three children and a leaf entry with an overflowed value fits
	// an empty page.
	MaxKeySize = 2048

	// minFanout is the number of maximal entries a page must hold.
	minFanout = 4
)

// maxInlineEntry is the largest leaf entry stored in the page itself.
// Larger values go to the overflow file.
func maxInlineEntry() int {
	return (storage.PageSize-storage.HeaderSize-nextPtrSize)/minFanout - storage.SlotSize
}
