package target

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultCapacity = 20

// Ranker holds at most Capacity targets, one per subject, ordered by
// priority. All methods are safe for concurrent use.
type Ranker struct {
	capacity int
	now      func() time.Time

	mu    sync.RWMutex
	items []Target
}

func NewRanker(capacity int) *Ranker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ranker{capacity: capacity, now: time.Now}
}

// Upsert replaces any target for the same subject and re-ranks. It returns the
// targets pushed out by the capacity bound; the upserted target itself is
// among them when it ranks last.
func (r *Ranker) Upsert(t Target) []Target {
	t.SubjectID = strings.TrimSpace(t.SubjectID)
	if t.SubjectID == "" {
		return nil
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].SubjectID == t.SubjectID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.items = append(r.items, t)
	sort.SliceStable(r.items, func(i, j int) bool { return ranksBefore(r.items[i], r.items[j]) })
	if len(r.items) <= r.capacity {
		return nil
	}
	evicted := append([]Target(nil), r.items[r.capacity:]...)
	r.items = r.items[:r.capacity]
	return evicted
}

// List returns a ranked copy.
func (r *Ranker) List() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Target(nil), r.items...)
}

func (r *Ranker) Get(subjectID string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.items {
		if t.SubjectID == subjectID {
			return t, true
		}
	}
	return Target{}, false
}

// Remove drops the target for a subject, e.g. once it has been admitted.
func (r *Ranker) Remove(subjectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].SubjectID == subjectID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}

// Evict drops targets created more than olderThan ago and returns how many went.
func (r *Ranker) Evict(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, t := range r.items {
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, t)
	}
	n := len(r.items) - len(kept)
	r.items = kept
	return n
}

func (r *Ranker) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Ranker) Capacity() int { return r.capacity }
