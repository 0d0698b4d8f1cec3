// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is a source of the current time in epoch nanoseconds.
// Production code injects System(); tests inject Fake() with
// deterministic time control.
//
// Every component that needs the time accepts a Clock (or reads the
// agent's Cached view) instead of calling the time package directly.
type Clock interface {
	// Nanos returns the current time as nanoseconds since the Unix
	// epoch. Successive calls are monotonic non-decreasing.
	Nanos() int64

	// Time returns the current time as a time.Time. Diagnostic use
	// only; hot-path code works in Nanos.
	Time() time.Time
}

// Cached is a once-per-cycle snapshot of a Clock. Refresh samples the
// underlying clock; Nanos returns the sampled value without touching
// the clock again. Not safe for concurrent use; the owning agent
// thread is the only caller.
type Cached struct {
	source Clock
	now    int64
}

// NewCached returns a Cached view over source, primed with an initial
// sample so Nanos is valid before the first Refresh.
func NewCached(source Clock) *Cached {
	return &Cached{source: source, now: source.Nanos()}
}

// Refresh samples the underlying clock. Called once at the top of
// each duty cycle.
func (c *Cached) Refresh() {
	c.now = c.source.Nanos()
}

// Nanos returns the timestamp captured by the most recent Refresh.
func (c *Cached) Nanos() int64 { return c.now }

// Time returns the cached timestamp as a time.Time.
func (c *Cached) Time() time.Time { return time.Unix(0, c.now) }

// Source returns the underlying clock, for components that need a
// fresh sample outside the cycle cadence (property write timestamps
// use this so OnUpdate can distinguish writes within one cycle).
func (c *Cached) Source() Clock { return c.source }
