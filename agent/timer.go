// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/cadence-rtc/cadence/lib/clock"
	"github.com/cadence-rtc/cadence/lib/symbol"
)

// timerEntry is one pending one-shot timer.
type timerEntry struct {
	id         int64
	deadlineNs int64
	seq        int64
	event      symbol.ID
}

// TimerScheduler holds the agent's pending timers, polled once per
// duty cycle. Timers are one-shot; recurring behavior is the
// handler's job (it reschedules from inside the fired event).
//
// Entries stay sorted by deadline then scheduling order, so Poll
// fires due timers in a deterministic order and stops at the first
// non-due entry.
type TimerScheduler struct {
	now     *clock.Cached
	entries []timerEntry
	firing  []timerEntry
	nextID  int64
	nextSeq int64
}

// NewTimerScheduler returns a scheduler with capacity reserved for
// the expected pending-timer count.
func NewTimerScheduler(now *clock.Cached, capacity int) *TimerScheduler {
	return &TimerScheduler{
		now:     now,
		entries: make([]timerEntry, 0, capacity),
		firing:  make([]timerEntry, 0, capacity),
		nextID:  1,
	}
}

// Schedule places a timer at now + delayNs and returns its ID.
func (t *TimerScheduler) Schedule(delayNs int64, event symbol.ID) (int64, error) {
	if delayNs < 0 {
		return 0, &TimerSchedulingError{Reason: "negative delay", DeadlineNs: t.now.Nanos() + delayNs}
	}
	return t.ScheduleAt(t.now.Nanos()+delayNs, event)
}

// ScheduleAt places a timer at an absolute deadline. A deadline in
// the past is legal: the timer fires on the next poll.
func (t *TimerScheduler) ScheduleAt(deadlineNs int64, event symbol.ID) (int64, error) {
	if event == symbol.None {
		return 0, &InvalidTimerError{Reason: "no event name"}
	}
	id := t.nextID
	t.nextID++
	entry := timerEntry{id: id, deadlineNs: deadlineNs, seq: t.nextSeq, event: event}
	t.nextSeq++

	at := t.insertionIndex(entry)
	t.entries = append(t.entries, timerEntry{})
	copy(t.entries[at+1:], t.entries[at:])
	t.entries[at] = entry
	return id, nil
}

// insertionIndex finds the sorted position for entry: after every
// entry with an earlier deadline, and after equal deadlines scheduled
// earlier.
func (t *TimerScheduler) insertionIndex(entry timerEntry) int {
	low, high := 0, len(t.entries)
	for low < high {
		mid := (low + high) / 2
		e := &t.entries[mid]
		if e.deadlineNs < entry.deadlineNs ||
			(e.deadlineNs == entry.deadlineNs && e.seq < entry.seq) {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low
}

// CancelID removes the timer with the given ID.
func (t *TimerScheduler) CancelID(id int64) error {
	for i := range t.entries {
		if t.entries[i].id == id {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return nil
		}
	}
	return &TimerNotFoundError{ID: id}
}

// CancelEvent removes every timer carrying the given event name and
// returns the count removed.
func (t *TimerScheduler) CancelEvent(event symbol.ID) int {
	kept := t.entries[:0]
	removed := 0
	for i := range t.entries {
		if t.entries[i].event == event {
			removed++
			continue
		}
		kept = append(kept, t.entries[i])
	}
	t.entries = kept
	return removed
}

// CancelAll removes every pending timer and returns the count.
func (t *TimerScheduler) CancelAll() int {
	removed := len(t.entries)
	t.entries = t.entries[:0]
	return removed
}

// Len returns the pending timer count.
func (t *TimerScheduler) Len() int { return len(t.entries) }

// Poll fires every timer whose deadline has passed, removing each
// before its callback runs so a callback can freely reschedule. The
// due set is captured up front: a timer scheduled by a callback for
// the current instant waits for the next poll.
func (t *TimerScheduler) Poll(fire func(event symbol.ID, nowNs int64)) int {
	nowNs := t.now.Nanos()
	due := 0
	for due < len(t.entries) && t.entries[due].deadlineNs <= nowNs {
		due++
	}
	if due == 0 {
		return 0
	}

	t.firing = append(t.firing[:0], t.entries[:due]...)
	t.entries = append(t.entries[:0], t.entries[due:]...)
	for i := range t.firing {
		fire(t.firing[i].event, nowNs)
	}
	return due
}
