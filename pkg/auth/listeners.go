package auth

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/projectquik/spherekit/pkg/logging"
)

// Listener receives the identity state after every transition.
type Listener func(State)

// Subscription identifies a registered listener. The zero value is never
// registered, so removing it is a no-op.
type Subscription struct {
	id uuid.UUID
}

// String returns the subscription ID.
func (s Subscription) String() string {
	return s.id.String()
}

type listenerEntry struct {
	id     uuid.UUID
	fn     Listener
	active atomic.Bool
}

// listenerSet keeps listeners in insertion order. Notification iterates a
// snapshot, so listeners may add or remove listeners (themselves included)
// while being notified. A removed entry is skipped even if it is still in a
// snapshot being iterated.
type listenerSet struct {
	mu         sync.Mutex
	entries    []*listenerEntry
	lastSeq    uint64
	queue      []queuedState
	delivering bool
}

type queuedState struct {
	seq   uint64
	state State
}

func (l *listenerSet) add(fn Listener) Subscription {
	e := &listenerEntry{id: uuid.New(), fn: fn}
	e.active.Store(true)

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	return Subscription{id: e.id}
}

func (l *listenerSet) remove(sub Subscription) bool {
	if sub.id == uuid.Nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == sub.id {
			e.active.Store(false)
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *listenerSet) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *listenerSet) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		e.active.Store(false)
	}
	l.entries = nil
	l.queue = nil
}

// notify delivers st, published with sequence number seq, to every listener.
// A notification older than one already queued is dropped, so listeners
// never go back to a state that has been superseded.
//
// Only one goroutine delivers at a time. A caller arriving while another
// delivery runs, including a listener calling back into the manager,
// queues its state and returns; the delivering goroutine drains the queue
// in order, so every listener sees states in sequence.
func (l *listenerSet) notify(seq uint64, st State) {
	l.mu.Lock()
	if seq <= l.lastSeq {
		l.mu.Unlock()
		logging.Debug("Listeners", "Dropping superseded notification %d", seq)
		return
	}
	l.lastSeq = seq
	l.queue = append(l.queue, queuedState{seq: seq, state: st})
	if l.delivering {
		l.mu.Unlock()
		return
	}
	l.delivering = true

	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		snapshot := make([]*listenerEntry, len(l.entries))
		copy(snapshot, l.entries)
		l.mu.Unlock()

		for _, e := range snapshot {
			if !e.active.Load() {
				continue
			}
			invoke(e.id, e.fn, next.state)
		}

		l.mu.Lock()
	}
	l.delivering = false
	l.mu.Unlock()
}

// invoke calls one listener in isolation. A panic is logged and swallowed so
// the remaining listeners still run.
func invoke(id uuid.UUID, fn Listener, st State) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Listeners", fmt.Errorf("panic: %v", r),
				"Listener %s panicked\n%s", id, debug.Stack())
		}
	}()
	fn(st)
}
