package primary

import (
	"github.com/tuannm99/wormtable/internal/btree"
	"github.com/tuannm99/wormtable/internal/row"
)

// Cursor iterates rows in row order:
//
//	cur := s.Scan(0)
//	for cur.Next() {
//		use(cur.ID(), cur.Row())
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	c       *btree.Cursor
	started bool
	id      uint64
	data    []byte
	err     error
}

func (cur *Cursor) Next() bool {
	if cur.err != nil {
		return false
	}
	if cur.started {
		cur.c.Next()
	}
	cur.started = true
	if !cur.c.Valid() {
		cur.err = cur.c.Err()
		return false
	}

	id, err := row.ID(cur.c.Key())
	if err != nil {
		cur.err = err
		return false
	}
	data, err := cur.c.Value()
	if err != nil {
		cur.err = err
		return false
	}
	cur.id, cur.data = id, data
	return true
}

func (cur *Cursor) ID() uint64  { return cur.id }
func (cur *Cursor) Row() []byte { return cur.data }
func (cur *Cursor) Err() error  { return cur.err }
