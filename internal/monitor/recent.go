package monitor

import "sync"

// RecentSet is a fixed-capacity set of recently processed transaction IDs
// with O(1) membership and FIFO eviction: once full, inserting a new key
// drops the oldest one. Each Monitor owns its own instance. Safe for
// concurrent use.
type RecentSet struct {
	mu    sync.Mutex
	ring  []string
	head  int
	index map[string]struct{}
}

// NewRecentSet creates a RecentSet holding at most capacity keys.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecentSet{
		ring:  make([]string, 0, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

// MarkProcessed records key as processed. It returns true when the key was
// newly inserted and false when it was already present. The check and insert
// happen under one lock, so two concurrent deliveries of the same
// transaction cannot both claim it.
func (r *RecentSet) MarkProcessed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[key]; ok {
		return false
	}

	if len(r.ring) < cap(r.ring) {
		r.ring = append(r.ring, key)
	} else {
		delete(r.index, r.ring[r.head])
		r.ring[r.head] = key
		r.head = (r.head + 1) % cap(r.ring)
	}
	r.index[key] = struct{}{}
	return true
}

// Contains reports whether key has been processed and not yet evicted.
func (r *RecentSet) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[key]
	return ok
}

// Len returns the number of live keys.
func (r *RecentSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}
