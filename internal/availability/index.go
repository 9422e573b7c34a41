package availability

import (
	"sort"
	"sync"
	"time"
)

type interval struct {
	id    string
	start time.Time
	end   time.Time
}

// Index is the read-optimized projection of active reservations: per bay,
// a slice of committed [start,end) intervals kept sorted by start. Because
// the allocator only ever inserts non-overlapping intervals, sorting by
// start also sorts by end, so overlap queries are O(log n + k).
type Index struct {
	mu         sync.RWMutex
	byResource map[string][]interval
}

func New() *Index {
	return &Index{byResource: make(map[string][]interval)}
}

// overlaps is the half-open interval test: touching boundaries do not clash.
func overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Insert records an interval for a resource. The caller guarantees it does
// not overlap any existing one (allocator checks IsFree under its lock).
func (ix *Index) Insert(resource, id string, start, end time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ivs := ix.byResource[resource]
	i := sort.Search(len(ivs), func(i int) bool { return !ivs[i].start.Before(start) })
	ivs = append(ivs, interval{})
	copy(ivs[i+1:], ivs[i:])
	ivs[i] = interval{id: id, start: start, end: end}
	ix.byResource[resource] = ivs
}

// Remove drops a reservation's interval. Unknown ids are a no-op; frees from
// cancellation and expiry may race and the second caller must not fail.
func (ix *Index) Remove(resource, id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ivs := ix.byResource[resource]
	for i, iv := range ivs {
		if iv.id == id {
			ix.byResource[resource] = append(ivs[:i], ivs[i+1:]...)
			return true
		}
	}
	return false
}

func (ix *Index) IsFree(resource string, start, end time.Time) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.overlapping(resource, start, end)) == 0
}

// Overlapping returns the reservation ids whose intervals clash with
// [start,end), in start order.
func (ix *Index) Overlapping(resource string, start, end time.Time) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.overlapping(resource, start, end)
}

func (ix *Index) overlapping(resource string, start, end time.Time) []string {
	ivs := ix.byResource[resource]
	// first interval whose end is after start (ends are sorted, see type doc)
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].end.After(start) })
	var out []string
	for ; i < len(ivs) && ivs[i].start.Before(end); i++ {
		if overlaps(ivs[i].start, ivs[i].end, start, end) {
			out = append(out, ivs[i].id)
		}
	}
	return out
}

// Len reports how many active intervals a resource carries.
func (ix *Index) Len(resource string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byResource[resource])
}
