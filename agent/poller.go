// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

// Poller is one unit of per-cycle work. Poll returns the amount of
// work performed (messages handled, timers fired); zero means the
// cycle found nothing to do, which idle strategies use to back off.
type Poller interface {
	Poll(a *Agent) int
}

// PollerFunc adapts a function to the Poller interface.
type PollerFunc func(a *Agent) int

// Poll calls f.
func (f PollerFunc) Poll(a *Agent) int { return f(a) }

// Built-in poller names and priorities. Lower priority runs first;
// custom pollers may use any integer, including values between the
// built-ins.
const (
	PollerInputStreams  = "input_streams"
	PollerProperties    = "properties"
	PollerTimers        = "timers"
	PollerControlStream = "control_stream"

	PriorityInputStreams  = 10
	PriorityProperties    = 50
	PriorityTimers        = 75
	PriorityControlStream = 200
)

type pollerEntry struct {
	name     string
	priority int
	poller   Poller
}

// pollerRegistry is the priority-ordered active poller list with
// deferred mutation. Structural changes requested while the cycle is
// iterating land in the pending buffers and take effect at the end of
// the cycle, so iteration stays a plain indexed loop with no
// reentrancy surprises.
type pollerRegistry struct {
	active        []pollerEntry
	pendingAdd    []pollerEntry
	pendingRemove []string
}

func newPollerRegistry(capacity int) *pollerRegistry {
	return &pollerRegistry{
		active:        make([]pollerEntry, 0, capacity),
		pendingAdd:    make([]pollerEntry, 0, capacity),
		pendingRemove: make([]string, 0, capacity),
	}
}

func (r *pollerRegistry) contains(entries []pollerEntry, name string) bool {
	for i := range entries {
		if entries[i].name == name {
			return true
		}
	}
	return false
}

func (r *pollerRegistry) removalPending(name string) bool {
	for _, pending := range r.pendingRemove {
		if pending == name {
			return true
		}
	}
	return false
}

// register enqueues an addition. A name already active or already
// pending addition is a duplicate, unless its removal is also
// pending, which permits unregister-then-register within one cycle.
func (r *pollerRegistry) register(name string, priority int, poller Poller) error {
	if r.contains(r.pendingAdd, name) {
		return &DuplicateNameError{Name: name}
	}
	if r.contains(r.active, name) && !r.removalPending(name) {
		return &DuplicateNameError{Name: name}
	}
	r.pendingAdd = append(r.pendingAdd, pollerEntry{name: name, priority: priority, poller: poller})
	return nil
}

// unregister enqueues a removal. Idempotent: a pending addition is
// cancelled, an active entry is marked for removal, an unknown name
// is a no-op.
func (r *pollerRegistry) unregister(name string) {
	for i := range r.pendingAdd {
		if r.pendingAdd[i].name == name {
			r.pendingAdd = append(r.pendingAdd[:i], r.pendingAdd[i+1:]...)
			return
		}
	}
	if r.contains(r.active, name) && !r.removalPending(name) {
		r.pendingRemove = append(r.pendingRemove, name)
	}
}

// clear wipes everything immediately, built-ins included, and returns
// the number of entries discarded.
func (r *pollerRegistry) clear() int {
	removed := len(r.active) + len(r.pendingAdd)
	r.active = r.active[:0]
	r.pendingAdd = r.pendingAdd[:0]
	r.pendingRemove = r.pendingRemove[:0]
	return removed
}

// apply folds the pending buffers into the active list: removals
// first (preserving order), then additions, each inserted after the
// last entry of equal or lower priority so ties stay FIFO.
func (r *pollerRegistry) apply() {
	if len(r.pendingRemove) > 0 {
		kept := r.active[:0]
		for i := range r.active {
			if !r.removalPending(r.active[i].name) {
				kept = append(kept, r.active[i])
			}
		}
		r.active = kept
		r.pendingRemove = r.pendingRemove[:0]
	}

	for i := range r.pendingAdd {
		entry := r.pendingAdd[i]
		at := r.insertionIndex(entry.priority)
		r.active = append(r.active, pollerEntry{})
		copy(r.active[at+1:], r.active[at:])
		r.active[at] = entry
	}
	r.pendingAdd = r.pendingAdd[:0]
}

// insertionIndex binary-searches for the position just after the last
// active entry whose priority is <= priority.
func (r *pollerRegistry) insertionIndex(priority int) int {
	low, high := 0, len(r.active)
	for low < high {
		mid := (low + high) / 2
		if r.active[mid].priority <= priority {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low
}

func (r *pollerRegistry) length() int { return len(r.active) }

func (r *pollerRegistry) containsName(name string) bool {
	return (r.contains(r.active, name) && !r.removalPending(name)) || r.contains(r.pendingAdd, name)
}
