// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the Cadence base agent: a single-threaded
// unit of work driven by a cooperative duty cycle.
//
// Each duty cycle refreshes the cached clock, runs every active
// poller in priority order, applies deferred poller registrations,
// and bumps the observability counters. The built-in pollers drain
// inbound streams into the hierarchical state machine, evaluate
// publication strategies, and fire due timers; the state machine's
// handlers publish through the status and property proxies.
//
// Everything on the cycle path has reserved capacity: once an agent
// is warmed up, DoWork performs no heap allocation. That guarantee is
// load-bearing (the agent thread is typically pinned to a core, and
// an allocation-triggered GC assist is a latency excursion) and the
// test suite enforces it.
//
// An Agent is owned by exactly one goroutine (usually a runner with
// the thread locked) and must not be shared.
package agent
