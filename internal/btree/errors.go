package btree

import "errors"

// ErrOutOfOrderInsert is returned when Append is given a key that is not
// strictly greater than the last appended key.
var ErrOutOfOrderInsert = errors.New("btree: keys must be appended in strictly increasing order")

var (
	ErrExists      = errors.New("btree: tree already exists")
	ErrNotFound    = errors.New("btree: tree not found")
	ErrKeyNotFound = errors.New("btree: key not found")
	ErrReadOnly    = errors.New("btree: tree is read-only")
	ErrClosed      = errors.New("btree: tree is closed")
	ErrKeyTooLarge = errors.New("btree: key too large")
	ErrEmptyKey    = errors.New("btree: empty key")
	ErrCorrupt     = errors.New("btree: corrupt node")
)
