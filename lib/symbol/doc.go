// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package symbol provides interned string identifiers.
//
// Event names, property keys, timer names, and wire message keys are
// all symbols: short identifiers interned once (at agent construction
// or registration time) into small integer IDs. Hot-path code compares
// and dispatches on the integer; the string form exists only for
// diagnostics and wire encoding.
//
// A Table is not safe for concurrent use. Each agent owns its own
// table, consistent with the single-threaded agent model.
package symbol
