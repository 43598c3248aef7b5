// Package poolutil implements the process-wide, fixed-capacity
// allocation pools described in spec.md §5: static initial capacity,
// one-shot initialization, exhaustion reported back to the caller
// rather than silently growing. This is deliberately not sync.Pool —
// sync.Pool is reclaimed by the GC at any time and cannot enforce a
// hard capacity, which the NO_MEMORY / autoprovisioning-rollback path
// (spec.md §4.1, §7) depends on being deterministic.
package poolutil

import "sync"

// Fixed is a free-list backed pool with a hard capacity. Get reports
// ok=false once the pool is exhausted instead of allocating past the
// configured limit.
type Fixed[T any] struct {
	mu       sync.Mutex
	free     []*T
	new      func() *T
	reset    func(*T)
	capacity int
	live     int
}

// NewFixed creates a pool that can hand out at most capacity live
// values at once. new constructs a zero value; reset clears a
// returned value before it is reused.
func NewFixed[T any](capacity int, new func() *T, reset func(*T)) *Fixed[T] {
	return &Fixed[T]{
		new:      new,
		reset:    reset,
		capacity: capacity,
	}
}

// Get returns a value and ok=true, or ok=false if the pool has
// reached capacity and has nothing free to hand back.
func (p *Fixed[T]) Get() (*T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free = p.free[:n-1]
		p.live++
		return v, true
	}
	if p.live >= p.capacity {
		return nil, false
	}
	p.live++
	return p.new(), true
}

// Put returns a value to the pool, making it available for reuse.
func (p *Fixed[T]) Put(v *T) {
	if v == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reset != nil {
		p.reset(v)
	}
	p.live--
	p.free = append(p.free, v)
}

// Stats reports current utilization for metrics export.
func (p *Fixed[T]) Stats() (live, capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, p.capacity
}

// StringTierClass names one of the layered string pool size classes.
type StringTierClass int

const (
	TierSmall StringTierClass = iota
	TierMedium
	TierLarge
	tierCount
)

// Bytes for each class: small strings (typical scalar values),
// medium (JSON fragments), large (buffered JSON dumps).
var tierSizes = [tierCount]int{
	TierSmall:  64,
	TierMedium: 1024,
	TierLarge:  16384,
}

// StringTiers layers three fixed-capacity byte-slice size classes.
// Each class is a free-list with a hard cap (spec.md §5: "static
// initial capacity"); when a class's own free list is exhausted and
// it is already at capacity, Get donates from the next larger class
// rather than failing, per "a layered pool exhausts its own class
// before falling back to donating from a larger class".
type StringTiers struct {
	classes [tierCount]*Fixed[[]byte]
}

// NewStringTiers constructs the three size classes with the given
// per-class capacities (number of live buffers, not bytes).
func NewStringTiers(smallCap, mediumCap, largeCap int) *StringTiers {
	st := &StringTiers{}
	caps := [tierCount]int{TierSmall: smallCap, TierMedium: mediumCap, TierLarge: largeCap}
	for c := StringTierClass(0); c < tierCount; c++ {
		size := tierSizes[c]
		st.classes[c] = NewFixed(caps[c],
			func() *[]byte { b := make([]byte, 0, size); return &b },
			func(b *[]byte) { *b = (*b)[:0] },
		)
	}
	return st
}

func classFor(n int) StringTierClass {
	switch {
	case n <= tierSizes[TierSmall]:
		return TierSmall
	case n <= tierSizes[TierMedium]:
		return TierMedium
	default:
		return TierLarge
	}
}

// Get returns a buffer with at least capacity n, drawn from its own
// size class first, falling back to the next larger class (and so on)
// when that class is at capacity. Returns ok=false only when every
// class from n's own size class upward is exhausted.
func (st *StringTiers) Get(n int) (buf []byte, class StringTierClass, ok bool) {
	start := classFor(n)
	for c := start; c < tierCount; c++ {
		if v, got := st.classes[c].Get(); got {
			if cap(*v) < n {
				// Large-class buffers are sized for TierLarge; a
				// request bigger than that still gets a fresh, larger
				// allocation rather than failing outright.
				*v = make([]byte, 0, n)
			}
			return (*v)[:0], c, true
		}
	}
	return nil, 0, false
}

// Put returns a buffer to the size class it was drawn from.
func (st *StringTiers) Put(class StringTierClass, buf []byte) {
	buf = buf[:0]
	st.classes[class].Put(&buf)
}
