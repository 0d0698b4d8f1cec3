// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"testing"

	"github.com/cadence-rtc/cadence/lib/clock"
	"github.com/cadence-rtc/cadence/lib/symbol"
)

type timerFixture struct {
	fake    *clock.FakeClock
	cached  *clock.Cached
	timers  *TimerScheduler
	symbols *symbol.Table
	fired   []symbol.ID
}

func newTimerFixture(t *testing.T) *timerFixture {
	t.Helper()
	f := &timerFixture{
		fake:    clock.Fake(0),
		symbols: symbol.NewTable(8),
	}
	f.cached = clock.NewCached(f.fake)
	f.timers = NewTimerScheduler(f.cached, 8)
	return f
}

func (f *timerFixture) poll() int {
	f.cached.Refresh()
	return f.timers.Poll(func(event symbol.ID, _ int64) {
		f.fired = append(f.fired, event)
	})
}

func TestTimerFiresAtDeadline(t *testing.T) {
	f := newTimerFixture(t)
	tick := f.symbols.Intern("Tick")
	if _, err := f.timers.Schedule(1000, tick); err != nil {
		t.Fatal(err)
	}

	if n := f.poll(); n != 0 {
		t.Errorf("fired %d before deadline", n)
	}
	f.fake.Advance(999)
	if n := f.poll(); n != 0 {
		t.Errorf("fired %d one nanosecond early", n)
	}
	f.fake.Advance(1)
	if n := f.poll(); n != 1 {
		t.Errorf("fired %d at deadline, want 1", n)
	}
	// One-shot: no refire.
	f.fake.Advance(10_000)
	if n := f.poll(); n != 0 {
		t.Errorf("timer refired %d times", n)
	}
}

func TestFiringOrderDeadlineThenInsertion(t *testing.T) {
	f := newTimerFixture(t)
	first := f.symbols.Intern("First")
	second := f.symbols.Intern("Second")
	third := f.symbols.Intern("Third")

	// Insert out of deadline order; Second and Third share one
	// deadline and must fire in scheduling order.
	if _, err := f.timers.Schedule(500, second); err != nil {
		t.Fatal(err)
	}
	if _, err := f.timers.Schedule(100, first); err != nil {
		t.Fatal(err)
	}
	if _, err := f.timers.Schedule(500, third); err != nil {
		t.Fatal(err)
	}

	f.fake.Advance(1000)
	if n := f.poll(); n != 3 {
		t.Fatalf("fired %d, want 3", n)
	}
	want := []symbol.ID{first, second, third}
	for i, id := range want {
		if f.fired[i] != id {
			t.Fatalf("firing order %v, want %v", f.fired, want)
		}
	}
}

func TestCancelByID(t *testing.T) {
	f := newTimerFixture(t)
	tick := f.symbols.Intern("Tick")
	id, err := f.timers.Schedule(100, tick)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.timers.CancelID(id); err != nil {
		t.Fatal(err)
	}
	var notFound *TimerNotFoundError
	if err := f.timers.CancelID(id); !errors.As(err, &notFound) {
		t.Errorf("double cancel = %v, want TimerNotFoundError", err)
	}

	f.fake.Advance(1000)
	if n := f.poll(); n != 0 {
		t.Errorf("cancelled timer fired %d times", n)
	}
}

func TestCancelByEventRemovesAllMatchesOnly(t *testing.T) {
	f := newTimerFixture(t)
	doomed := f.symbols.Intern("Doomed")
	kept := f.symbols.Intern("Kept")

	for i := 0; i < 3; i++ {
		if _, err := f.timers.Schedule(int64(100+i), doomed); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.timers.Schedule(150, kept); err != nil {
		t.Fatal(err)
	}

	if removed := f.timers.CancelEvent(doomed); removed != 3 {
		t.Errorf("CancelEvent removed %d, want 3", removed)
	}
	f.fake.Advance(1000)
	if n := f.poll(); n != 1 || f.fired[0] != kept {
		t.Errorf("fired %d (%v), want only Kept", n, f.fired)
	}
}

func TestCancelAll(t *testing.T) {
	f := newTimerFixture(t)
	tick := f.symbols.Intern("Tick")
	for i := 0; i < 5; i++ {
		if _, err := f.timers.Schedule(int64(i), tick); err != nil {
			t.Fatal(err)
		}
	}
	if removed := f.timers.CancelAll(); removed != 5 {
		t.Errorf("CancelAll removed %d, want 5", removed)
	}
	if f.timers.Len() != 0 {
		t.Errorf("Len = %d after CancelAll", f.timers.Len())
	}
}

func TestRescheduleFromCallback(t *testing.T) {
	f := newTimerFixture(t)
	heartbeat := f.symbols.Intern("Heartbeat")
	if _, err := f.timers.ScheduleAt(0, heartbeat); err != nil {
		t.Fatal(err)
	}

	// Each firing reschedules one period ahead, the way the agent's
	// heartbeat handler does.
	const period = 1_000_000
	fired := 0
	fire := func(event symbol.ID, nowNs int64) {
		fired++
		if _, err := f.timers.ScheduleAt(nowNs+period, event); err != nil {
			t.Fatal(err)
		}
	}

	for cycle := 0; cycle < 20; cycle++ {
		f.cached.Refresh()
		f.timers.Poll(fire)
		f.fake.Advance(500_000)
	}
	// Cycles sample t = 0, 0.5ms, ..., 9.5ms; the heartbeat lands on
	// every whole millisecond: t=0 plus 1..9.
	if fired != 10 {
		t.Errorf("heartbeat fired %d times, want 10", fired)
	}
}

func TestScheduleRejectsNegativeDelay(t *testing.T) {
	f := newTimerFixture(t)
	tick := f.symbols.Intern("Tick")
	var schedErr *TimerSchedulingError
	if _, err := f.timers.Schedule(-1, tick); !errors.As(err, &schedErr) {
		t.Errorf("negative delay = %v, want TimerSchedulingError", err)
	}
}

func TestScheduleRejectsMissingEvent(t *testing.T) {
	f := newTimerFixture(t)
	var invalidErr *InvalidTimerError
	if _, err := f.timers.Schedule(10, symbol.None); !errors.As(err, &invalidErr) {
		t.Errorf("missing event = %v, want InvalidTimerError", err)
	}
}

func TestPollDoesNotAllocateSteadyState(t *testing.T) {
	f := newTimerFixture(t)
	tick := f.symbols.Intern("Tick")
	fire := func(event symbol.ID, nowNs int64) {
		_, _ = f.timers.ScheduleAt(nowNs+100, event)
	}
	if _, err := f.timers.ScheduleAt(100, tick); err != nil {
		t.Fatal(err)
	}

	allocs := testing.AllocsPerRun(100, func() {
		f.fake.Advance(100)
		f.cached.Refresh()
		if f.timers.Poll(fire) != 1 {
			t.Fatal("timer missed")
		}
	})
	if allocs != 0 {
		t.Errorf("Poll allocates %.1f per op, want 0", allocs)
	}
}
