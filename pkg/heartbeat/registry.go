// Package heartbeat drives periodic game logic. A Registry hands out stable
// handles to heartbeat-capable objects and a Scheduler runs the single
// cooperative game loop: posted I/O callbacks, heartbeat passes and event
// queue drains, one at a time on one goroutine.
package heartbeat

// Beater is anything that reacts to a heartbeat. Heartbeat runs on the
// scheduler goroutine.
type Beater interface {
	Heartbeat()
}

// Handle identifies a registered Beater. The zero Handle is never issued.
type Handle struct {
	index int32
	gen   uint32
}

// Valid reports whether h was ever issued by a registry.
func (h Handle) Valid() bool {
	return h.gen != 0
}

type slot struct {
	beater Beater
	gen    uint32 // bumped on every free so stale handles miss
}

// Registry is a dense slab of Beaters addressed by Handle. Freed slots are
// reused through a free list. It is only touched from the scheduler
// goroutine and has no locking.
type Registry struct {
	slots []slot
	free  []int32
	live  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds b and returns its handle.
func (r *Registry) Register(b Beater) Handle {
	var idx int32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{gen: 1})
		idx = int32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.beater = b
	r.live++
	return Handle{index: idx, gen: s.gen}
}

// Unregister frees the slot behind h. It returns false if h is stale or was
// never registered.
func (r *Registry) Unregister(h Handle) bool {
	if !r.owns(h) {
		return false
	}
	s := &r.slots[h.index]
	s.beater = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.free = append(r.free, h.index)
	r.live--
	return true
}

// Get returns the Beater behind h.
func (r *Registry) Get(h Handle) (Beater, bool) {
	if !r.owns(h) {
		return nil, false
	}
	return r.slots[h.index].beater, true
}

// Len returns the number of registered Beaters.
func (r *Registry) Len() int {
	return r.live
}

// Handles returns the live handles in slot order.
func (r *Registry) Handles() []Handle {
	out := make([]Handle, 0, r.live)
	for i := range r.slots {
		if r.slots[i].beater != nil {
			out = append(out, Handle{index: int32(i), gen: r.slots[i].gen})
		}
	}
	return out
}

func (r *Registry) owns(h Handle) bool {
	if !h.Valid() || h.index < 0 || int(h.index) >= len(r.slots) {
		return false
	}
	s := r.slots[h.index]
	return s.gen == h.gen && s.beater != nil
}
