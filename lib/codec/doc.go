// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Cadence's standard CBOR configuration.
//
// CBOR carries the control-plane artifacts: recording manifests,
// counter metadata dumps, and property-store snapshots. It is never
// used on the per-cycle hot path: reflection-based encoding
// allocates, and hot-path messages use the fixed binary layout in
// package wire instead.
//
// Encoding is Core Deterministic (RFC 8949 §4.2) so that the same
// logical manifest always produces identical bytes, which keeps
// recording segment hashes reproducible.
package codec
