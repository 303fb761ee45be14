package alert

import (
	"sync"
	"sync/atomic"
)

// Async decouples delivery from the caller. Events go through a buffered
// channel drained by a single worker; when the buffer is full the event is
// dropped and counted instead of blocking the tick.
type Async struct {
	next    Alerter
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAsync wraps next with a buffered worker. A non-positive buffer gets a
// sane default.
func NewAsync(next Alerter, buffer int) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		next: next,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	for e := range a.ch {
		a.next.Notify(e)
	}
	close(a.done)
}

// Notify queues the event, dropping it if the buffer is full or the alerter
// is closed.
func (a *Async) Notify(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- e:
	default:
		a.dropped.Add(1)
	}
}

// Close stops accepting events, drains what is queued, and waits for the
// worker to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

// Dropped reports how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}
