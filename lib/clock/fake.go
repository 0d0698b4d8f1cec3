// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Fake returns a FakeClock initialized to the given epoch-nanosecond
// instant. Time stands still until Advance or Set is called.
//
// Agent timers are polled, not goroutine-driven, so the fake needs no
// waiter machinery: tests advance the clock and run a duty cycle, and
// everything due fires inside that cycle.
func Fake(initial int64) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for testing. It is not safe for
// concurrent use, matching the single-threaded agent model it tests.
type FakeClock struct {
	current int64
}

// Nanos returns the current fake time.
func (c *FakeClock) Nanos() int64 { return c.current }

// Time returns the current fake time as a time.Time.
func (c *FakeClock) Time() time.Time { return time.Unix(0, c.current) }

// Advance moves the clock forward by d nanoseconds. Panics on a
// negative delta: a fake clock that runs backwards would violate the
// monotonic contract the runtime is built on.
func (c *FakeClock) Advance(d int64) {
	if d < 0 {
		panic("clock: negative advance")
	}
	c.current += d
}

// AdvanceDuration moves the clock forward by d.
func (c *FakeClock) AdvanceDuration(d time.Duration) {
	c.Advance(d.Nanoseconds())
}

// Set jumps the clock to the given instant. Panics if the target is
// in the past.
func (c *FakeClock) Set(nanos int64) {
	if nanos < c.current {
		panic("clock: Set would move time backwards")
	}
	c.current = nanos
}
