package position

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Occupancy is the slot picture an admission gate sees. It is taken under
// the book lock, so the gate and the reservation that follows are atomic.
type Occupancy struct {
	Active        int
	SubjectActive bool
	LastOpened    time.Time
	Now           time.Time
}

// Book is the single owner of position state. Every mutation goes through
// its lock; readers get copies.
type Book struct {
	now func() time.Time

	mu         sync.RWMutex
	byID       map[string]*Position
	lastOpened time.Time
}

func NewBook() *Book {
	return &Book{now: time.Now, byID: map[string]*Position{}}
}

// SetClock replaces the book's time source.
func (b *Book) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *Book) Now() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.now()
}

// Reserve asks gate whether p may take a slot. When it may, p is stored as
// pending, OpenedAt is stamped and the cooldown clock moves to that stamp.
// The stamp stays even if the buy later fails.
func (b *Book) Reserve(p Position, gate func(Occupancy) (bool, string)) (Position, bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	occ := Occupancy{LastOpened: b.lastOpened, Now: now}
	for _, cur := range b.byID {
		if !cur.State.Active() {
			continue
		}
		occ.Active++
		if cur.SubjectID == p.SubjectID {
			occ.SubjectActive = true
		}
	}
	if ok, reason := gate(occ); !ok {
		return Position{}, false, reason
	}
	p.State = StatePending
	p.OpenedAt = now
	b.lastOpened = now
	cp := p
	b.byID[p.ID] = &cp
	return p, true, ""
}

func (b *Book) Get(id string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.byID[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// List returns positions in the given states, newest first. No states means all.
func (b *Book) List(states ...State) []Position {
	b.mu.RLock()
	out := make([]Position, 0, len(b.byID))
	for _, p := range b.byID {
		if len(states) > 0 && !hasState(states, p.State) {
			continue
		}
		out = append(out, *p)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (b *Book) ActiveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, p := range b.byID {
		if p.State.Active() {
			n++
		}
	}
	return n
}

func (b *Book) LastOpened() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastOpened
}

// transition moves id from one state to another and applies mutate under the lock.
func (b *Book) transition(id string, from, to State, mutate func(*Position)) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.byID[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	if p.State != from || !canTransition(from, to) {
		return *p, fmt.Errorf("%w: %s is %s, want %s->%s", ErrInvalidTransition, id, p.State, from, to)
	}
	if mutate != nil {
		mutate(p)
	}
	p.State = to
	return *p, nil
}

// update mutates id in place when it is still in the expected state.
func (b *Book) update(id string, state State, mutate func(*Position)) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.byID[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	if p.State != state {
		return *p, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, id, p.State, state)
	}
	mutate(p)
	return *p, nil
}

// restore loads a persisted position without running any gate.
func (b *Book) restore(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := p
	b.byID[p.ID] = &cp
	if p.OpenedAt.After(b.lastOpened) {
		b.lastOpened = p.OpenedAt
	}
}

// Prune drops terminal positions closed before cutoff and returns how many went.
func (b *Book) Prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, p := range b.byID {
		if p.State.Active() {
			continue
		}
		at := p.OpenedAt
		if p.ClosedAt != nil {
			at = *p.ClosedAt
		}
		if at.Before(cutoff) {
			delete(b.byID, id)
			n++
		}
	}
	return n
}

func hasState(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
