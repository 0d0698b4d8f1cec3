// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner drives an agent's duty-cycle loop on a dedicated
// goroutine.
//
// The runner calls OnStart once, then DoWork until the agent
// terminates or the context is cancelled, then OnClose. Between
// cycles an idle strategy converts the work count into a pacing
// decision: spin while work flows, back off through yields into
// sleeps when the agent goes quiet.
//
// The goroutine is locked to its OS thread so the operator can pin it
// to a core with OS tooling.
package runner
