// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package ident generates correlation IDs for outbound messages.
//
// A correlation ID is a unique, monotonically increasing 64-bit
// identifier. IDs embed the generating node so that responses can be
// matched to requests across agents without coordination: 41 bits of
// epoch milliseconds, 10 bits of node ID, 12 bits of per-millisecond
// sequence.
//
// A Generator is owned by one agent thread and is not safe for
// concurrent use.
package ident
