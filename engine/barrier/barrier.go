// Package barrier pairs GPU resources with their last known state so every pass
// can record exactly the transitions it needs.
package barrier

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// Tracked is a resource paired with the state it will be in when the next recorded
// command executes. The state only changes through Transition, so recording order
// and tracked state never drift apart.
//
// Tracked has no locking: a resource is recorded by one goroutine at a time.
type Tracked[R gpu.Resource] struct {
	res   R
	state gpu.ResourceState
	rest  gpu.ResourceState
}

// New pairs res with its creation state, which is also its rest state.
//
// Parameters:
//   - res: the resource to track
//   - initial: the state res was created in
//
// Returns:
//   - *Tracked[R]: the tracked resource
func New[R gpu.Resource](res R, initial gpu.ResourceState) *Tracked[R] {
	return &Tracked[R]{res: res, state: initial, rest: initial}
}

// WithRest overrides the state the resource must return to between passes.
func (t *Tracked[R]) WithRest(rest gpu.ResourceState) *Tracked[R] {
	t.rest = rest
	return t
}

// Resource returns the underlying resource.
func (t *Tracked[R]) Resource() R {
	return t.res
}

// State returns the tracked state.
func (t *Tracked[R]) State() gpu.ResourceState {
	return t.state
}

// Rest returns the state the resource starts and ends every pass in.
func (t *Tracked[R]) Rest() gpu.ResourceState {
	return t.rest
}

// AtRest reports whether the resource is currently in its rest state.
func (t *Tracked[R]) AtRest() bool {
	return t.state == t.rest
}

// Transition records one barrier from the tracked state to to and updates the tracked state.
// Transitioning to the current state is a caller error; it is recorded anyway so a
// validating backend reports it.
//
// Parameters:
//   - cl: the command list to record into
//   - to: the target state
func (t *Tracked[R]) Transition(cl gpu.CommandList, to gpu.ResourceState) {
	cl.ResourceBarrier(gpu.Barrier{Resource: t.res, Before: t.state, After: to})
	t.state = to
}

// ToRest transitions back to the rest state if the resource is elsewhere.
func (t *Tracked[R]) ToRest(cl gpu.CommandList) {
	if t.state != t.rest {
		t.Transition(cl, t.rest)
	}
}

// Replace swaps in a new resource in the given state, for example after a swap chain resize.
func (t *Tracked[R]) Replace(res R, state gpu.ResourceState) {
	t.res = res
	t.state = state
}

func (t *Tracked[R]) String() string {
	return fmt.Sprintf("%s[%s]", t.res.Label(), t.state)
}

// Batch collects transitions for several resources and records them as one barrier call.
type Batch struct {
	barriers []gpu.Barrier
}

// Add appends the transition of t to to and updates its tracked state.
func Add[R gpu.Resource](b *Batch, t *Tracked[R], to gpu.ResourceState) {
	b.barriers = append(b.barriers, gpu.Barrier{Resource: t.res, Before: t.state, After: to})
	t.state = to
}

// Flush records the collected barriers, if any, and empties the batch.
func (b *Batch) Flush(cl gpu.CommandList) {
	if len(b.barriers) == 0 {
		return
	}
	cl.ResourceBarrier(b.barriers...)
	b.barriers = b.barriers[:0]
}

// Len returns the number of pending transitions.
func (b *Batch) Len() int {
	return len(b.barriers)
}
