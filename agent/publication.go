// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/cadence-rtc/cadence/hsm"
	"github.com/cadence-rtc/cadence/lib/symbol"
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/transport"
)

// PublicationConfig ties one property to one output stream under one
// strategy. The property poller owns the mutable timing fields.
type PublicationConfig struct {
	// Field is the property key being published.
	Field props.Key
	// FieldSym is the interned property name, used as the message key.
	FieldSym symbol.ID
	// StreamIndex is the 1-based index into the agent's output
	// streams.
	StreamIndex int
	// Strategy decides when to publish.
	Strategy Strategy

	// LastPublishedNs is the publication mark of the most recent
	// successful publish; -1 means never.
	LastPublishedNs int64
	// NextScheduledNs is the precomputed next fire time for
	// scheduling strategies; -1 means none.
	NextScheduledNs int64

	// publication caches the resolved output stream.
	publication transport.Publication
}

// RegisterPublication adds a (field, stream, strategy) registration.
// The stream index is validated here; a bad index is fatal at
// registration, not a surprise on the hot path.
func (a *Agent) RegisterPublication(field string, streamIndex int, strategy Strategy) (*PublicationConfig, error) {
	key := a.store.Lookup(field)
	if key == props.KeyNone {
		return nil, &props.NotFoundError{Name: field}
	}
	if streamIndex < 1 || streamIndex > len(a.outputs) {
		return nil, &StreamNotFoundError{StreamName: field, StreamIndex: streamIndex}
	}
	now := a.clock.Nanos()
	cfg := &PublicationConfig{
		Field:           key,
		FieldSym:        a.store.Symbol(key),
		StreamIndex:     streamIndex,
		Strategy:        strategy,
		LastPublishedNs: neverNs,
		NextScheduledNs: NextTime(strategy, now),
		publication:     a.outputs[streamIndex-1],
	}
	a.publications = append(a.publications, cfg)
	return cfg, nil
}

// pollProperties is the built-in properties poller: evaluate every
// registration against the cycle clock and dispatch a
// publish-property event for each one that is due.
//
// The published mark is taken from the property's timestamp for
// update-driven strategies (not from the cached clock: a write that
// lands while the clock stands still must still be detectable), and
// from the schedule for cadence-driven ones.
func (a *Agent) pollProperties() int {
	now := a.clock.Nanos()
	work := 0
	for _, cfg := range a.publications {
		propertyTs := a.store.LastUpdateNs(cfg.Field)
		if !ShouldPublish(cfg.Strategy, cfg.LastPublishedNs, cfg.NextScheduledNs, propertyTs, now) {
			continue
		}
		a.Dispatch(hsm.Event{ID: a.events.publishProperty, TimeNs: now, Payload: cfg})
		cfg.LastPublishedNs = publishedMark(cfg.Strategy, propertyTs, cfg.NextScheduledNs, now)
		cfg.NextScheduledNs = advanceSchedule(cfg.Strategy, cfg.NextScheduledNs, now)
		a.published.Increment()
		work++
	}
	return work
}
