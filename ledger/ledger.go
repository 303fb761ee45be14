package ledger

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound    = errors.New("position not found")
	ErrDuplicateID = errors.New("position id already in ledger")
	ErrNotTerminal = errors.New("position is not in a terminal state")
)

// Ledger holds the session's positions keyed by ID, preserving insertion
// order for listings. All methods are safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]Position
	order     []string
}

func New() *Ledger {
	return &Ledger{positions: make(map[string]Position)}
}

// Insert adds a new position. The ID must not already be present.
func (l *Ledger) Insert(p Position) error {
	if p.ID == "" {
		return errors.New("position id is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	l.positions[p.ID] = p
	l.order = append(l.order, p.ID)
	return nil
}

// Get returns a copy of the position with the given ID.
func (l *Ledger) Get(id string) (Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[id]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Update replaces the stored record for p.ID with p. The record must exist;
// partial updates are not a thing, callers write back the whole position.
func (l *Ledger) Update(p Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[p.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	l.positions[p.ID] = p
	return nil
}

// Remove deletes a position. Only terminal positions may be removed; a live
// position must be driven to Closed or Cancelled first.
func (l *Ledger) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !p.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, id, p.State)
	}

	delete(l.positions, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// AllOpen returns copies of every non-terminal position in insertion order.
// The slice is a point-in-time snapshot; mutating it does not touch the
// ledger.
func (l *Ledger) AllOpen() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.order))
	for _, id := range l.order {
		if p := l.positions[id]; !p.State.Terminal() {
			out = append(out, p)
		}
	}
	return out
}

// All returns copies of every position, terminal ones included, in insertion
// order.
func (l *Ledger) All() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.positions[id])
	}
	return out
}
