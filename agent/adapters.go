// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"bytes"

	"github.com/cadence-rtc/cadence/hsm"
	"github.com/cadence-rtc/cadence/transport"
	"github.com/cadence-rtc/cadence/wire"
)

// Per-cycle fragment limits. The control stream is low-rate and
// latency-tolerant, so one fragment per cycle keeps its cost flat;
// data inputs drain faster.
const (
	controlFragmentLimit = 1
	inputFragmentLimit   = 10
)

// streamAdapter converts inbound stream messages to state machine
// events: poll, reassemble, decode, dispatch under the decoded
// message key. One adapter instance serves either the control
// subscription or the set of data input subscriptions.
type streamAdapter struct {
	agent         *Agent
	subscriptions []transport.Subscription
	assembler     *transport.FragmentAssembler
	// onFragment is assembler.OnFragment, bound once so Poll does not
	// materialize a method value per cycle.
	onFragment    transport.FragmentHandler
	decoder       *wire.Decoder
	message       wire.Message
	fragmentLimit int

	// filter, when non-empty, drops messages whose tag differs.
	// Control adapters use it to scope a shared control channel.
	filter []byte

	// work accumulates dispatched messages within one Poll call.
	work int
}

func newStreamAdapter(agent *Agent, subscriptions []transport.Subscription, fragmentLimit int, filter string) *streamAdapter {
	adapter := &streamAdapter{
		agent:         agent,
		subscriptions: subscriptions,
		decoder:       wire.NewDecoder(),
		fragmentLimit: fragmentLimit,
	}
	if filter != "" {
		adapter.filter = []byte(filter)
	}
	adapter.assembler = transport.NewFragmentAssembler(adapter.onMessage, 0)
	adapter.onFragment = adapter.assembler.OnFragment
	return adapter
}

// Poll drains each subscription up to the fragment limit and returns
// the number of messages dispatched.
func (s *streamAdapter) Poll(a *Agent) int {
	s.work = 0
	for _, subscription := range s.subscriptions {
		subscription.Poll(s.onFragment, s.fragmentLimit)
	}
	return s.work
}

// onMessage receives one reassembled message.
func (s *streamAdapter) onMessage(buffer []byte, _ transport.Flags) {
	if _, err := s.decoder.Decode(buffer, &s.message); err != nil {
		s.agent.log.Warn("dropping undecodable message", "error", err)
		return
	}
	if s.filter != nil && !bytes.Equal(s.message.Tag, s.filter) {
		return
	}

	a := s.agent
	now := a.clock.Nanos()
	eventID := a.events.lateMessage
	if a.lateThresholdNs <= 0 || now-s.message.TimestampNs <= a.lateThresholdNs {
		// Dispatch under the message key. An uninterned key resolves
		// to symbol.None, which no state handles; the root fallback
		// still sees the message and serves property reads/writes.
		eventID = a.symbols.LookupBytes(s.message.Key)
	}

	a.messageCount++
	s.work++
	a.Dispatch(hsm.Event{
		ID:            eventID,
		TimeNs:        now,
		CorrelationID: s.message.CorrelationID,
		Msg:           &s.message,
	})
}
