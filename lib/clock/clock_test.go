// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestCachedHoldsSampleUntilRefresh(t *testing.T) {
	fake := Fake(1000)
	cached := NewCached(fake)

	if got := cached.Nanos(); got != 1000 {
		t.Fatalf("initial Nanos() = %d, want 1000", got)
	}

	fake.Advance(500)
	if got := cached.Nanos(); got != 1000 {
		t.Errorf("Nanos() after source advance = %d, want stale 1000", got)
	}

	cached.Refresh()
	if got := cached.Nanos(); got != 1500 {
		t.Errorf("Nanos() after Refresh = %d, want 1500", got)
	}
}

func TestFakeAdvance(t *testing.T) {
	fake := Fake(0)
	fake.AdvanceDuration(3 * time.Millisecond)
	if got := fake.Nanos(); got != 3_000_000 {
		t.Errorf("Nanos() = %d, want 3000000", got)
	}
	fake.Set(10_000_000)
	if got := fake.Nanos(); got != 10_000_000 {
		t.Errorf("Nanos() after Set = %d, want 10000000", got)
	}
}

func TestFakeRejectsBackwardsTime(t *testing.T) {
	fake := Fake(100)

	defer func() {
		if recover() == nil {
			t.Error("Set into the past did not panic")
		}
	}()
	fake.Set(50)
}

func TestSystemMonotonic(t *testing.T) {
	system := System()
	previous := system.Nanos()
	for i := 0; i < 1000; i++ {
		now := system.Nanos()
		if now < previous {
			t.Fatalf("system clock went backwards: %d < %d", now, previous)
		}
		previous = now
	}
}

func TestCachedNanosDoesNotAllocate(t *testing.T) {
	cached := NewCached(Fake(0))
	allocs := testing.AllocsPerRun(100, func() {
		cached.Refresh()
		_ = cached.Nanos()
	})
	if allocs != 0 {
		t.Errorf("Refresh+Nanos allocates %.1f per op, want 0", allocs)
	}
}
