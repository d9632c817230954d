package gpu

import (
	"sort"
	"sync"
	"time"
)

// Infinite makes Event.Wait block until the event is set.
const Infinite time.Duration = -1

// Event is an auto-reset wait handle. Set wakes exactly one Wait; a Set with no
// waiter is remembered until the next Wait consumes it.
type Event struct {
	ch chan struct{}
}

// NewEvent creates an unset event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Set signals the event. Setting an already set event is a no-op.
func (e *Event) Set() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Reset clears a pending signal.
func (e *Event) Reset() {
	select {
	case <-e.ch:
	default:
	}
}

// Wait blocks until the event is set or timeout elapses. A timeout of Infinite never expires.
//
// Returns:
//   - error: ErrTimeout if the event was not set in time
func (e *Event) Wait(timeout time.Duration) error {
	if timeout < 0 {
		<-e.ch
		return nil
	}
	if timeout == 0 {
		select {
		case <-e.ch:
			return nil
		default:
			return ErrTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-e.ch:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// FenceTracker holds the completed value of a fence and the events armed against it.
// Backends embed it to implement the CPU side of Fence.
type FenceTracker struct {
	mu        sync.Mutex
	completed uint64
	waiters   []fenceWaiter
}

type fenceWaiter struct {
	value uint64
	event *Event
}

// NewFenceTracker returns a tracker starting at initial.
func NewFenceTracker(initial uint64) *FenceTracker {
	return &FenceTracker{completed: initial}
}

// CompletedValue returns the last value the fence reached.
func (t *FenceTracker) CompletedValue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Complete moves the fence to value and sets every event armed at or below it.
// value may be lower than the current value when the CPU rewinds the fence.
func (t *FenceTracker) Complete(value uint64) {
	t.mu.Lock()
	t.completed = value
	var fire []*Event
	kept := t.waiters[:0]
	for _, w := range t.waiters {
		if w.value <= value {
			fire = append(fire, w.event)
			continue
		}
		kept = append(kept, w)
	}
	t.waiters = kept
	t.mu.Unlock()

	for _, e := range fire {
		e.Set()
	}
}

// Arm sets e once the fence reaches value, immediately if it already has.
func (t *FenceTracker) Arm(value uint64, e *Event) {
	t.mu.Lock()
	if t.completed >= value {
		t.mu.Unlock()
		e.Set()
		return
	}
	t.waiters = append(t.waiters, fenceWaiter{value: value, event: e})
	sort.SliceStable(t.waiters, func(i, j int) bool { return t.waiters[i].value < t.waiters[j].value })
	t.mu.Unlock()
}

// Pending returns the number of armed events still waiting.
func (t *FenceTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
