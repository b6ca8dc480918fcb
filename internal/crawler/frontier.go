package crawler

import (
	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// Bloom filter settings for ~1M URLs with 1% false positive rate
	bloomFilterSize = 1_000_000
	bloomFilterRate = 0.01
)

// urlSet is an exact set fronted by a bloom filter. The filter never
// forgets, so a negative Test answers membership without touching the map.
type urlSet struct {
	seen    *bloom.BloomFilter
	members map[string]struct{}
}

func newURLSet() urlSet {
	return urlSet{
		seen:    bloom.NewWithEstimates(bloomFilterSize, bloomFilterRate),
		members: make(map[string]struct{}),
	}
}

func (s *urlSet) add(u string) bool {
	if s.contains(u) {
		return false
	}
	s.seen.AddString(u)
	s.members[u] = struct{}{}
	return true
}

func (s *urlSet) contains(u string) bool {
	if !s.seen.TestString(u) {
		return false
	}
	_, ok := s.members[u]
	return ok
}

func (s *urlSet) remove(u string) {
	delete(s.members, u)
}

// Frontier is an insertion-ordered set of pending URLs with FIFO pops.
// It is owned by one Crawler and not safe for concurrent use.
type Frontier struct {
	queue []string
	head  int
	set   urlSet
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{set: newURLSet()}
}

// Push appends u unless it is already pending
func (f *Frontier) Push(u string) bool {
	if !f.set.add(u) {
		return false
	}
	f.queue = append(f.queue, u)
	return true
}

// Pop removes and returns the earliest pushed URL still pending
func (f *Frontier) Pop() (string, bool) {
	if f.IsEmpty() {
		return "", false
	}

	u := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++
	f.set.remove(u)

	// Reclaim the consumed prefix once it dominates the slice
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append([]string(nil), f.queue[f.head:]...)
		f.head = 0
	}

	return u, true
}

// Contains reports whether u is pending
func (f *Frontier) Contains(u string) bool {
	return f.set.contains(u)
}

// IsEmpty checks if the frontier has no more URLs
func (f *Frontier) IsEmpty() bool {
	return f.head >= len(f.queue)
}

// Size returns the number of pending URLs
func (f *Frontier) Size() int {
	return len(f.queue) - f.head
}

// Items returns the pending URLs in pop order
func (f *Frontier) Items() []string {
	return append([]string(nil), f.queue[f.head:]...)
}

// VisitedSet records fetched URLs in visit order
type VisitedSet struct {
	order []string
	set   urlSet
}

// NewVisitedSet creates an empty visited set
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{set: newURLSet()}
}

// Add records u; it reports false if u was already visited
func (v *VisitedSet) Add(u string) bool {
	if !v.set.add(u) {
		return false
	}
	v.order = append(v.order, u)
	return true
}

// Contains reports whether u was visited
func (v *VisitedSet) Contains(u string) bool {
	return v.set.contains(u)
}

// Len returns the number of visited URLs
func (v *VisitedSet) Len() int {
	return len(v.order)
}

// Items returns the visited URLs in visit order
func (v *VisitedSet) Items() []string {
	return append([]string(nil), v.order...)
}
