package spawn

import (
	"math/bits"

	"github.com/udisondev/zombiearena/internal/model"
)

// Slot is a pooled zombie. Slots are allocated once at pool construction and
// reused for the whole session.
type Slot struct {
	ID        int        `json:"zombieId"`
	Health    int        `json:"health"`
	MaxHealth int        `json:"maxHealth"`
	Speed     float64    `json:"speed"`
	Position  model.Vec3 `json:"position"`
	Active    bool       `json:"-"`
}

// Pool is a fixed-capacity arena of zombie slots with an active bitset.
// Not safe for concurrent use; Spawner guards it.
type Pool struct {
	slots  []Slot
	active []uint64
	count  int
}

// NewPool allocates capacity slots, all inactive.
func NewPool(capacity int) *Pool {
	capacity = max(capacity, 0)
	p := &Pool{
		slots:  make([]Slot, capacity),
		active: make([]uint64, (capacity+63)/64),
	}
	for i := range p.slots {
		p.slots[i].ID = i
	}
	return p
}

// Capacity returns the fixed slot count.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// ActiveCount returns the number of active slots.
func (p *Pool) ActiveCount() int {
	return p.count
}

// IsActive reports whether slot id is active. Out-of-range ids are inactive.
func (p *Pool) IsActive(id int) bool {
	if id < 0 || id >= len(p.slots) {
		return false
	}
	return p.active[id/64]&(1<<(uint(id)%64)) != 0
}

// acquire marks the lowest free slot active and returns it.
// Returns nil when every slot is in use.
func (p *Pool) acquire() *Slot {
	for w, word := range p.active {
		if word == ^uint64(0) {
			continue
		}
		id := w*64 + bits.TrailingZeros64(^word)
		if id >= len(p.slots) {
			return nil
		}
		p.active[w] |= 1 << (uint(id) % 64)
		p.count++
		s := &p.slots[id]
		s.Active = true
		return s
	}
	return nil
}

// Release deactivates slot id. Returns false if it was not active.
func (p *Pool) Release(id int) bool {
	if !p.IsActive(id) {
		return false
	}
	p.active[id/64] &^= 1 << (uint(id) % 64)
	p.count--
	p.slots[id].Active = false
	return true
}

// Get returns a copy of slot id.
func (p *Pool) Get(id int) (Slot, bool) {
	if id < 0 || id >= len(p.slots) {
		return Slot{}, false
	}
	return p.slots[id], true
}

// Reset deactivates every slot.
func (p *Pool) Reset() {
	clear(p.active)
	for i := range p.slots {
		p.slots[i].Active = false
	}
	p.count = 0
}
