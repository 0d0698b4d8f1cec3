// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package observe implements Cadence's observability primitive: a
// shared-memory counters file that agents write and out-of-process
// tools read.
//
// The file has two regions. A metadata region holds one record per
// counter: allocation state, type ID, an opaque key (for agent
// counters: the 64-bit agent ID little-endian followed by the UTF-8
// agent name), and a display label. A values region holds one
// cache-line-sized slot per counter with the 64-bit value at its
// start. Values are updated with atomic operations on the mapped
// memory, so a sidecar (cadence-stat) can watch live counters without
// any protocol between the processes beyond the file layout.
//
// The layout constants are protocol; changing them breaks readers.
package observe
