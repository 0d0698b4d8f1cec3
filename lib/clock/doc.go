// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the agent runtime.
//
// All agent timing is expressed as int64 nanoseconds since the Unix
// epoch. Production code injects System(); tests inject Fake() and
// advance it deterministically.
//
// The duty cycle reads "now" many times per cycle (timer polling,
// publication strategies, stats derivation) but the kernel clock is
// sampled exactly once per cycle through Cached: Refresh() at the top
// of the cycle, Nanos() everywhere else. This keeps a whole cycle on
// one coherent timestamp and keeps vDSO calls off the inner loops.
package clock
