package bufferpool

// clock implements CLOCK (second-chance) replacement for a fixed number of
// frames. It tracks ref bits and evictable state for frame IDs [0..capacity).
type clock struct {
	ref       []bool
	evictable []bool
	present   []bool
	hand      int
	size      int // number of evictable frames
}

var _ Replacer = (*clock)(nil)

func newClock(capacity int) *clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &clock{
		ref:       make([]bool, capacity),
		evictable: make([]bool, capacity),
		present:   make([]bool, capacity),
	}
}

func (c *clock) valid(id int) bool { return id >= 0 && id < len(c.ref) }

// RecordAccess marks a frame as recently used.
func (c *clock) RecordAccess(id int) {
	if !c.valid(id) {
		return
	}
	c.present[id] = true
	c.ref[id] = true
}

// SetEvictable marks whether a frame can be evicted (pin == 0).
func (c *clock) SetEvictable(id int, evictable bool) {
	if !c.valid(id) || !c.present[id] || c.evictable[id] == evictable {
		return
	}
	c.evictable[id] = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict returns a victim and stops tracking it.
func (c *clock) Evict() (int, bool) {
	n := len(c.ref)
	if c.size == 0 {
		return -1, false
	}

	// Two sweeps: the first may only clear ref bits.
	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !c.present[idx] || !c.evictable[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}
		c.present[idx] = false
		c.evictable[idx] = false
		c.size--
		return idx, true
	}
	return -1, false
}

func (c *clock) Remove(id int) {
	if !c.valid(id) || !c.present[id] {
		return
	}
	if c.evictable[id] {
		c.size--
	}
	c.present[id] = false
	c.evictable[id] = false
	c.ref[id] = false
}

func (c *clock) Size() int { return c.size }
