// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package props implements the agent property store: a statically
// keyed mapping from symbolic names to typed values.
//
// The key set is fixed at construction from a list of Specs; there is
// no dynamic property creation. Each slot carries a declared wire
// format, an access mode, optional validating setter and computing
// getter hooks, preallocated storage for variable-size payloads, and
// a last-update timestamp that is monotonic per key and advances only
// on successful writes.
//
// The store is owned by exactly one agent and is the single source of
// truth for published values. It is not safe for concurrent use.
package props
