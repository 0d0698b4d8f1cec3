// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"runtime"

	"github.com/cadence-rtc/cadence/agent"
)

// Runner owns one agent's execution loop.
type Runner struct {
	agent *agent.Agent
	idle  IdleStrategy
	done  chan struct{}
	err   error
}

// New wraps an agent with an idle strategy. A nil strategy gets the
// default backoff.
func New(a *agent.Agent, idle IdleStrategy) *Runner {
	if idle == nil {
		idle = &Backoff{}
	}
	return &Runner{
		agent: a,
		idle:  idle,
		done:  make(chan struct{}),
	}
}

// Run executes OnStart, the duty-cycle loop, and OnClose, returning
// when the agent terminates (clean Exit), OnStart fails, or ctx is
// cancelled. The calling goroutine is locked to its OS thread for the
// duration so the operator can pin it.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := r.agent.OnStart(); err != nil {
		r.err = fmt.Errorf("runner: starting agent: %w", err)
		r.agent.OnClose()
		return r.err
	}
	defer r.agent.OnClose()

	r.idle.Reset()
	for {
		if r.agent.Terminated() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.idle.Idle(r.agent.DoWork())
	}
}

// Done is closed when Run returns. Out-of-loop observers (tests,
// shutdown supervisors) wait on it.
func (r *Runner) Done() <-chan struct{} { return r.done }
