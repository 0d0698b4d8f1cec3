// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package recorder captures a stream's messages into an append-only
// segment file for offline analysis and replay.
//
// Messages are length-prefixed into an in-memory segment buffer; when
// the buffer fills, the segment is sealed: compressed (zstd for
// text-like payloads, lz4 for mixed binary, or stored raw), hashed
// with BLAKE3, and appended to the data file. A CBOR manifest beside
// the data file records every segment's offset, sizes, compression
// tag, and hash, so a reader can verify integrity before replaying a
// single message.
//
// Recording is cooperative: the recorder exposes a Poll method driven
// by an agent poller (cadence-agent --record registers one) and never
// blocks on the subscription.
package recorder
