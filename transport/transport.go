// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "fmt"

// OfferResult is the outcome of a Publication.Offer.
type OfferResult int

const (
	// OfferSuccess means the message was committed to the stream.
	OfferSuccess OfferResult = iota
	// OfferBackPressure means the stream has no space this cycle.
	OfferBackPressure
	// OfferNotConnected means no subscriber is attached.
	OfferNotConnected
	// OfferAdminAction means the driver is reorganizing (e.g. closing);
	// retry on a later cycle.
	OfferAdminAction
)

// String returns the result name for diagnostics.
func (r OfferResult) String() string {
	switch r {
	case OfferSuccess:
		return "success"
	case OfferBackPressure:
		return "back-pressure"
	case OfferNotConnected:
		return "not-connected"
	case OfferAdminAction:
		return "admin-action"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Flags mark a fragment's position within its message.
type Flags uint8

const (
	// FlagBegin marks the first fragment of a message.
	FlagBegin Flags = 1 << 0
	// FlagEnd marks the last fragment of a message. An unfragmented
	// message carries FlagBegin|FlagEnd.
	FlagEnd Flags = 1 << 1

	// FlagsUnfragmented is the whole-message flag set.
	FlagsUnfragmented = FlagBegin | FlagEnd
)

// FragmentHandler receives one fragment per call. The buffer is valid
// only for the duration of the call; the driver may recycle it as soon
// as the handler returns.
type FragmentHandler func(buffer []byte, flags Flags)

// Publication is the writing end of a stream.
type Publication interface {
	// TryClaim reserves length bytes directly in the stream's buffer.
	// On success the returned Claim exposes the writable region; the
	// caller must Commit or Abort it before claiming again. Returns
	// false under back-pressure or when length exceeds the MTU.
	TryClaim(length int) (Claim, bool)

	// Offer publishes the concatenation of fragments as one message,
	// splitting it across the MTU as needed.
	Offer(fragments ...[]byte) OfferResult

	// Channel returns the stream URI.
	Channel() string

	// StreamID returns the stream ID within the channel.
	StreamID() int32

	// Close detaches the publication. Subsequent offers return
	// OfferNotConnected.
	Close() error
}

// Claim is a reserved zero-copy region on a stream. Exactly one of
// Commit or Abort must be called.
type Claim interface {
	// Buffer returns the writable payload region.
	Buffer() []byte
	// Commit publishes the claimed region.
	Commit()
	// Abort releases the region without publishing. The space is
	// consumed as padding.
	Abort()
}

// Subscription is the reading end of a stream.
type Subscription interface {
	// Poll delivers up to fragmentLimit fragments to handler and
	// returns the number delivered.
	Poll(handler FragmentHandler, fragmentLimit int) int

	// Channel returns the stream URI.
	Channel() string

	// StreamID returns the stream ID within the channel.
	StreamID() int32

	// Close detaches the subscription.
	Close() error
}

// Driver creates stream endpoints. The agent owns one driver for its
// lifetime and closes it on shutdown.
type Driver interface {
	// AddPublication attaches a publication to (uri, streamID),
	// creating the stream if needed.
	AddPublication(uri string, streamID int32) (Publication, error)

	// AddSubscription attaches the subscription end of (uri, streamID).
	AddSubscription(uri string, streamID int32) (Subscription, error)

	// Close releases all streams.
	Close() error
}
