// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/transport"
	"github.com/cadence-rtc/cadence/wire"
)

// statusProxy publishes agent status events (heartbeats, state
// changes, event responses) on the status stream.
//
// The encode path never allocates: scalar payloads are written
// straight into a claimed region on the stream; array and tensor
// payloads encode their envelope into the proxy's scratch buffer and
// go out as a vectored offer referencing the value's own payload
// bytes. Back-pressure drops the publish silently; status is
// best-effort and the next occurrence re-publishes.
type statusProxy struct {
	publication transport.Publication
	tag         []byte
	scratch     []byte
	fragments   [2][]byte
	message     wire.Message
}

// proxyScratchLength sizes the envelope scratch. Envelopes are small
// and bounded (header + tag + key + value prefix); 1 KB is several
// times the worst case.
const proxyScratchLength = 1024

func newStatusProxy(publication transport.Publication, tag []byte) *statusProxy {
	return &statusProxy{
		publication: publication,
		tag:         tag,
		scratch:     make([]byte, proxyScratchLength),
	}
}

// publish emits one status event keyed by key. Returns false when the
// publish was dropped (back-pressure or encode overflow).
func (p *statusProxy) publish(key []byte, value wire.Value, correlationID, nowNs int64) bool {
	p.message = wire.Message{
		TimestampNs:   nowNs,
		CorrelationID: correlationID,
		Tag:           p.tag,
		Key:           key,
		Value:         value,
	}
	return publishMessage(p.publication, &p.message, p.scratch, &p.fragments)
}

// propertyProxy publishes property values on the agent's output data
// streams. Same encoding discipline as the status proxy.
type propertyProxy struct {
	tag       []byte
	scratch   []byte
	fragments [2][]byte
	message   wire.Message
}

func newPropertyProxy(tag []byte) *propertyProxy {
	return &propertyProxy{
		tag:     tag,
		scratch: make([]byte, proxyScratchLength),
	}
}

// publish emits the property value for cfg. The stream handle is the
// one cached on the config at registration time.
func (p *propertyProxy) publish(cfg *PublicationConfig, store *props.Store, value wire.Value, correlationID, nowNs int64) bool {
	p.message = wire.Message{
		TimestampNs:   nowNs,
		CorrelationID: correlationID,
		Tag:           p.tag,
		Key:           store.NameBytes(cfg.Field),
		Value:         value,
	}
	return publishMessage(cfg.publication, &p.message, p.scratch, &p.fragments)
}

// publishMessage writes one message to a stream. Scalar-sized
// messages go through a zero-copy claim; messages with a detached
// Array/Tensor payload go through a vectored offer of
// [envelope, payload]. Encode overflow and back-pressure both drop
// the message without error: overflow is a programmer error (value
// sizes are bounded by the property type set) and back-pressure is
// retried by the strategy on a later cycle.
func publishMessage(publication transport.Publication, m *wire.Message, scratch []byte, fragments *[2][]byte) bool {
	switch m.Value.Format {
	case wire.FormatArray, wire.FormatTensor:
		n, ok := wire.EncodeEnvelope(scratch, m)
		if !ok {
			return false
		}
		fragments[0] = scratch[:n]
		fragments[1] = m.Value.Bytes
		return publication.Offer(fragments[:]...) == transport.OfferSuccess

	default:
		length := wire.EncodedLength(m)
		if length > len(scratch) {
			// Claim length mirrors the scratch bound; anything larger
			// is out of contract for a scalar message.
			return false
		}
		claim, ok := publication.TryClaim(length)
		if !ok {
			return false
		}
		if _, ok := wire.EncodeMessage(claim.Buffer(), m); !ok {
			claim.Abort()
			return false
		}
		claim.Commit()
		return true
	}
}
