// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the stream contract the agent runtime is
// written against, and an in-memory driver implementing it.
//
// A stream is a named, unidirectional byte-message channel. The
// publishing side writes either by claiming a zero-copy region
// (TryClaim/Commit) or by a vectored Offer of fragments; the
// subscribing side polls, receiving message fragments that a
// FragmentAssembler reassembles.
//
// The in-memory driver backs each (URI, stream ID) endpoint with a
// fixed-capacity ring of framed messages. Frames are 32-byte aligned
// with a small header carrying length, fragment flags, and type; a
// padding frame type absorbs the wrap at the end of the ring. Messages
// longer than the MTU are split into BEGIN/CONTINUE/END fragments.
//
// Back-pressure is explicit: TryClaim returns false and Offer returns
// OfferBackPressure when the ring lacks space. Callers on the duty
// cycle drop the publish and retry on a later cycle.
package transport
