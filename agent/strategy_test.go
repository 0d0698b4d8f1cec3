// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import "testing"

func TestShouldPublishOnUpdate(t *testing.T) {
	s := OnUpdateStrategy()
	cases := []struct {
		name          string
		lastPublished int64
		propertyTs    int64
		want          bool
	}{
		{"never published, property written", neverNs, 1000, true},
		{"never published, property at epoch", neverNs, 0, true},
		{"property advanced past mark", 1000, 1001, true},
		{"property at mark", 1000, 1000, false},
		{"property behind mark", 1000, 999, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldPublish(s, tc.lastPublished, neverNs, tc.propertyTs, 5000)
			if got != tc.want {
				t.Errorf("ShouldPublish = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldPublishPeriodicAnchored(t *testing.T) {
	s := PeriodicStrategy(1000)
	if ShouldPublish(s, neverNs, 2000, 0, 1999) {
		t.Error("fired before the scheduled anchor")
	}
	if !ShouldPublish(s, neverNs, 2000, 0, 2000) {
		t.Error("did not fire at the anchor")
	}
	if !ShouldPublish(s, neverNs, 2000, 0, 2400) {
		t.Error("did not fire past the anchor")
	}
	// Without a schedule the interval condition takes over.
	if !ShouldPublish(s, neverNs, neverNs, 0, 0) {
		t.Error("unscheduled, never-published registration did not fire")
	}
	if ShouldPublish(s, 1000, neverNs, 0, 1500) {
		t.Error("fired inside the interval")
	}
	if !ShouldPublish(s, 1000, neverNs, 0, 2000) {
		t.Error("did not fire after a full interval")
	}
}

func TestShouldPublishRateLimited(t *testing.T) {
	s := RateLimitedStrategy(1000)
	cases := []struct {
		name          string
		lastPublished int64
		propertyTs    int64
		now           int64
		want          bool
	}{
		{"first publish on update", neverNs, 100, 100, true},
		{"update inside min interval", 1000, 1500, 1500, false},
		{"update after min interval", 1000, 1500, 2000, true},
		{"no update after min interval", 1000, 1000, 5000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldPublish(s, tc.lastPublished, neverNs, tc.propertyTs, tc.now)
			if got != tc.want {
				t.Errorf("ShouldPublish = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldPublishScheduledFiresOnce(t *testing.T) {
	s := ScheduledStrategy(5000)
	if ShouldPublish(s, neverNs, 5000, 0, 4999) {
		t.Error("fired before the scheduled time")
	}
	if !ShouldPublish(s, neverNs, 5000, 0, 5000) {
		t.Error("did not fire at the scheduled time")
	}
	if !ShouldPublish(s, neverNs, 5000, 0, 9000) {
		t.Error("did not fire late")
	}
	// After the fire the mark is at or past the schedule: disarmed.
	mark := publishedMark(s, 0, 5000, 6000)
	if ShouldPublish(s, mark, 5000, 0, 10_000) {
		t.Error("refired after its single shot")
	}
}

func TestNextTime(t *testing.T) {
	now := int64(10_000)
	if got := NextTime(OnUpdateStrategy(), now); got != neverNs {
		t.Errorf("OnUpdate next = %d, want never", got)
	}
	if got := NextTime(PeriodicStrategy(500), now); got != 10_500 {
		t.Errorf("Periodic next = %d, want 10500", got)
	}
	if got := NextTime(RateLimitedStrategy(500), now); got != 10_500 {
		t.Errorf("RateLimited next = %d, want 10500", got)
	}
	if got := NextTime(ScheduledStrategy(99), now); got != 99 {
		t.Errorf("Scheduled next = %d, want 99", got)
	}
}

func TestPublishedMark(t *testing.T) {
	if got := publishedMark(OnUpdateStrategy(), 777, neverNs, 9999); got != 777 {
		t.Errorf("OnUpdate mark = %d, want the property timestamp", got)
	}
	if got := publishedMark(PeriodicStrategy(100), 777, 2000, 2050); got != 2000 {
		t.Errorf("Periodic mark = %d, want the schedule anchor", got)
	}
	if got := publishedMark(RateLimitedStrategy(100), 777, neverNs, 2050); got != 2050 {
		t.Errorf("RateLimited mark = %d, want now", got)
	}
	if got := publishedMark(RateLimitedStrategy(100), 3000, neverNs, 2050); got != 3000 {
		t.Errorf("RateLimited mark with future property = %d, want property timestamp", got)
	}
	if got := publishedMark(ScheduledStrategy(100), 777, 100, 2050); got != 2050 {
		t.Errorf("Scheduled mark = %d, want now", got)
	}
}

func TestAdvanceSchedule(t *testing.T) {
	periodic := PeriodicStrategy(1000)
	if got := advanceSchedule(periodic, 2000, 2400); got != 3000 {
		t.Errorf("Periodic advance = %d, want 3000", got)
	}
	// A stalled agent resumes cadence without catch-up bursts.
	if got := advanceSchedule(periodic, 2000, 7300); got != 8000 {
		t.Errorf("Periodic advance after stall = %d, want 8000", got)
	}
	if got := advanceSchedule(RateLimitedStrategy(500), neverNs, 100); got != 600 {
		t.Errorf("RateLimited advance = %d, want 600", got)
	}
	if got := advanceSchedule(ScheduledStrategy(42), 42, 9000); got != 42 {
		t.Errorf("Scheduled advance = %d, want 42", got)
	}
	if got := advanceSchedule(OnUpdateStrategy(), neverNs, 9000); got != neverNs {
		t.Errorf("OnUpdate advance = %d, want never", got)
	}
}

// TestPeriodicCadenceSimulation drives the strategy the way the
// property poller does: clock stepped by 400µs, interval 1ms. Fires
// land on each elapsed millisecond multiple: ten in a 10ms run.
func TestPeriodicCadenceSimulation(t *testing.T) {
	s := PeriodicStrategy(1_000_000)
	last := neverNs
	next := NextTime(s, 0) // registration at t=0
	fires := 0

	for now := int64(400_000); now <= 10_000_000; now += 400_000 {
		if !ShouldPublish(s, last, next, 0, now) {
			continue
		}
		fires++
		last = publishedMark(s, 0, next, now)
		next = advanceSchedule(s, next, now)
		if last < int64(fires-1)*1_000_000 {
			t.Fatalf("mark %d regressed at fire %d", last, fires)
		}
	}
	if fires != 10 {
		t.Errorf("fired %d times over 10ms, want 10", fires)
	}
}
