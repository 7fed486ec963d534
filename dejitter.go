package statesync

import (
	"sync"

	"go.uber.org/zap"
)

// DejitterBuffer is a ring of fixed capacity C indexed by tick/divisor mod
// C, where divisor is the network send rate (ticks per packet): only ticks
// that are multiples of divisor occupy slots. It tolerates out-of-order and
// gapped arrivals (spec §4.4).
type DejitterBuffer[T HasTick] struct {
	mu       sync.Mutex
	slots    []slotEntry[T]
	capacity int
	divisor  int32
	latest_  T
	hasLast  bool
}

type slotEntry[T HasTick] struct {
	item T
	used bool
}

// NewDejitterBuffer builds a buffer with capacity slots and the given
// divisor (spec §6 networkSendRate). divisor must be >= 1.
func NewDejitterBuffer[T HasTick](capacity int, divisor int32) *DejitterBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	if divisor < 1 {
		divisor = 1
	}
	return &DejitterBuffer[T]{
		slots:    make([]slotEntry[T], capacity),
		capacity: capacity,
		divisor:  divisor,
	}
}

func (d *DejitterBuffer[T]) slotIndex(tick Tick) int {
	return int((int32(tick) / d.divisor) % int32(d.capacity))
}

// Store places item at slot = (item.tick / divisor) mod C. An older tick in
// that slot is replaced; a newer tick already present causes the incoming
// item to be dropped (a stale delta: logged at debug level and swallowed).
func (d *DejitterBuffer[T]) Store(item T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tick := item.GetTick()
	idx := d.slotIndex(tick)
	slot := &d.slots[idx]

	if slot.used && !slot.item.GetTick().Less(tick) {
		logger().Debug("statesync: dropping stale delta",
			zap.Int32("incoming", int32(tick)),
			zap.Int32("stored", int32(slot.item.GetTick())))
		return
	}

	slot.item = item
	slot.used = true

	if !d.hasLast || d.latest_.GetTick().Less(tick) {
		d.latest_ = item
		d.hasLast = true
	}
}

// GetLatestAt returns the item with the largest tick <= tick, if any.
func (d *DejitterBuffer[T]) GetLatestAt(tick Tick) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latestAtLocked(tick)
}

func (d *DejitterBuffer[T]) latestAtLocked(tick Tick) (T, bool) {
	var best T
	found := false
	for i := range d.slots {
		s := &d.slots[i]
		if !s.used {
			continue
		}
		t := s.item.GetTick()
		if t.Less(tick) || t == tick {
			if !found || best.GetTick().Less(t) {
				best = s.item
				found = true
			}
		}
	}
	return best, found
}

// GetRangeAt returns cur = GetLatestAt(tick) and next, the smallest-tick
// item strictly greater than cur's tick, if any.
func (d *DejitterBuffer[T]) GetRangeAt(tick Tick) (cur T, curOK bool, next T, nextOK bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, curOK = d.latestAtLocked(tick)
	if !curOK {
		return
	}

	curTick := cur.GetTick()
	for i := range d.slots {
		s := &d.slots[i]
		if !s.used {
			continue
		}
		t := s.item.GetTick()
		if curTick.Less(t) {
			if !nextOK || t.Less(next.GetTick()) {
				next = s.item
				nextOK = true
			}
		}
	}
	return
}

// GetLatestFrom returns items with tick > tick, in ascending tick order. It
// materializes the (small, capacity-bounded) result eagerly rather than as
// a true lazy iterator, since Go has no first-class generators; callers
// consume it as a finite, single-pass slice.
func (d *DejitterBuffer[T]) GetLatestFrom(tick Tick) []T {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]T, 0, d.capacity)
	for i := range d.slots {
		s := &d.slots[i]
		if s.used && tick.Less(s.item.GetTick()) {
			out = append(out, s.item)
		}
	}
	sortByTick(out)
	return out
}

// Latest returns the item with the greatest tick currently stored, if any.
func (d *DejitterBuffer[T]) Latest() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest_, d.hasLast
}

func sortByTick[T HasTick](items []T) {
	// Insertion sort: dejitter buffers are tiny (bounded by capacity,
	// typically under a few dozen slots), so O(n^2) here beats pulling in
	// sort.Slice's reflection overhead for the hot per-tick path.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].GetTick().Less(items[j-1].GetTick()); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
