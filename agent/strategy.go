// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import "fmt"

// StrategyKind discriminates the publication strategies.
type StrategyKind uint8

const (
	// OnUpdate publishes when the property has been written since the
	// last publish.
	OnUpdate StrategyKind = iota
	// Periodic publishes on a fixed cadence regardless of writes.
	Periodic
	// RateLimited publishes on writes, but never more often than a
	// minimum spacing.
	RateLimited
	// Scheduled publishes exactly once at an absolute time.
	Scheduled
)

// String returns the strategy name for diagnostics.
func (k StrategyKind) String() string {
	switch k {
	case OnUpdate:
		return "on_update"
	case Periodic:
		return "periodic"
	case RateLimited:
		return "rate_limited"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(k))
	}
}

// Strategy is a publication strategy variant. IntervalNs carries the
// Periodic period or the RateLimited minimum spacing; AtNs carries
// the Scheduled fire time.
type Strategy struct {
	Kind       StrategyKind
	IntervalNs int64
	AtNs       int64
}

// OnUpdateStrategy fires on every property write.
func OnUpdateStrategy() Strategy { return Strategy{Kind: OnUpdate} }

// PeriodicStrategy fires every intervalNs.
func PeriodicStrategy(intervalNs int64) Strategy {
	return Strategy{Kind: Periodic, IntervalNs: intervalNs}
}

// RateLimitedStrategy fires on writes at most once per minIntervalNs.
func RateLimitedStrategy(minIntervalNs int64) Strategy {
	return Strategy{Kind: RateLimited, IntervalNs: minIntervalNs}
}

// ScheduledStrategy fires once at atNs.
func ScheduledStrategy(atNs int64) Strategy {
	return Strategy{Kind: Scheduled, AtNs: atNs}
}

// neverNs is the "never published" / "not scheduled" sentinel.
const neverNs int64 = -1

// ShouldPublish decides whether a (property, stream) registration is
// due. Pure and allocation-free; the property poller calls it for
// every registration on every cycle.
func ShouldPublish(s Strategy, lastPublishedNs, nextScheduledNs, propertyTsNs, nowNs int64) bool {
	switch s.Kind {
	case OnUpdate:
		// neverNs compares as negative infinity: an unpublished
		// registration fires on the property's initial value.
		return propertyTsNs > lastPublishedNs

	case Periodic:
		// The cadence anchors on the schedule computed at
		// registration, so fires land on elapsed multiples of the
		// interval rather than sliding by the polling granularity.
		if nextScheduledNs != neverNs {
			return nowNs >= nextScheduledNs
		}
		return lastPublishedNs == neverNs || nowNs-lastPublishedNs >= s.IntervalNs

	case RateLimited:
		return propertyTsNs > lastPublishedNs &&
			(lastPublishedNs == neverNs || nowNs-lastPublishedNs >= s.IntervalNs)

	case Scheduled:
		return nowNs >= s.AtNs && lastPublishedNs < s.AtNs

	default:
		return false
	}
}

// NextTime returns the precomputed next-fire time after a publish at
// nowNs, or neverNs for strategies that do not schedule ahead.
func NextTime(s Strategy, nowNs int64) int64 {
	switch s.Kind {
	case Periodic:
		return nowNs + s.IntervalNs
	case RateLimited:
		return nowNs + s.IntervalNs
	case Scheduled:
		return s.AtNs
	default:
		return neverNs
	}
}

// publishedMark returns the value to store into last_published_ns
// after a successful publish at nowNs of a property stamped
// propertyTsNs, given the schedule that triggered the fire.
//
// Update-driven strategies record the property's own timestamp so a
// write that lands while the cached clock stands still is not lost
// (the next write advances past the recorded mark even if "now" never
// moved). Periodic records the schedule anchor it fired on, so
// successive marks advance by exactly the interval. Scheduled records
// the cycle time, which is at or past its fire time and therefore
// disarms it. RateLimited records whichever of the property timestamp
// and the cycle time is later, keeping both its spacing guarantee and
// its update detection.
func publishedMark(s Strategy, propertyTsNs, nextScheduledNs, nowNs int64) int64 {
	switch s.Kind {
	case OnUpdate:
		return propertyTsNs
	case Periodic:
		if nextScheduledNs != neverNs {
			return nextScheduledNs
		}
		return nowNs
	case RateLimited:
		if propertyTsNs > nowNs {
			return propertyTsNs
		}
		return nowNs
	default:
		return nowNs
	}
}

// advanceSchedule rolls next_scheduled_ns forward after a fire at
// nowNs. Periodic advances by whole intervals until the schedule is
// in the future, so a stalled agent resumes its cadence without a
// burst of catch-up fires. Scheduled keeps its fire time (the
// last-published mark is what disarms it).
func advanceSchedule(s Strategy, nextScheduledNs, nowNs int64) int64 {
	switch s.Kind {
	case Periodic:
		next := nextScheduledNs
		if next == neverNs {
			next = nowNs
		}
		next += s.IntervalNs
		for next <= nowNs {
			next += s.IntervalNs
		}
		return next
	case RateLimited:
		return nowNs + s.IntervalNs
	case Scheduled:
		return s.AtNs
	default:
		return neverNs
	}
}
