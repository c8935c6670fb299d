// Package dedup remembers recently delivered event ids so overlapping fetches
// do not deliver the same event twice.
package dedup

import (
	"container/list"
	"sync"
	"time"

	"feedsync/internal/clock"
)

const DefaultCapacity = 500

// Set keeps at most Capacity ids and, when a window is set, forgets ids older
// than the window. Oldest entries are evicted first.
type Set struct {
	capacity int
	window   time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
}

type entry struct {
	id   string
	seen time.Time
}

func New(capacity int, window time.Duration, clk clock.Clock) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Set{
		capacity: capacity,
		window:   window,
		clock:    clk,
		order:    list.New(),
		entries:  map[string]*list.Element{},
	}
}

// Add marks id as seen and reports whether it was new.
func (s *Set) Add(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.pruneLocked(now)
	if el, ok := s.entries[id]; ok {
		el.Value.(*entry).seen = now
		s.order.MoveToBack(el)
		return false
	}
	s.entries[id] = s.order.PushBack(&entry{id: id, seen: now})
	for s.order.Len() > s.capacity {
		s.removeLocked(s.order.Front())
	}
	return true
}

func (s *Set) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	_, ok := s.entries[id]
	return ok
}

func (s *Set) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	return s.order.Len()
}

// Clear forgets every id.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	clear(s.entries)
}

func (s *Set) pruneLocked(now time.Time) {
	if s.window <= 0 {
		return
	}
	cutoff := now.Add(-s.window)
	for el := s.order.Front(); el != nil; el = s.order.Front() {
		if el.Value.(*entry).seen.After(cutoff) {
			return
		}
		s.removeLocked(el)
	}
}

func (s *Set) removeLocked(el *list.Element) {
	delete(s.entries, el.Value.(*entry).id)
	s.order.Remove(el)
}
