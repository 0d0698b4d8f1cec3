// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
)

// ErrAgentTermination is the control signal that ends the agent. It is
// not a failure: a handler that returns it marks the agent terminated,
// and the runner stops its loop cleanly on the next check. The Exit
// state's entry action sets the same flag directly. Every other error
// produced inside a handler is
// converted to an error event and dispatched back through the state
// machine.
var ErrAgentTermination = errors.New("agent: termination requested")

// StateError reports an operation attempted in a state that does not
// support it.
type StateError struct {
	CurrentState string
	AttemptedOp  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("agent: cannot %s in state %s", e.AttemptedOp, e.CurrentState)
}

// CommunicationError reports a transport-level failure outside the
// publish hot path.
type CommunicationError struct {
	Message string
}

func (e *CommunicationError) Error() string {
	return "agent: communication: " + e.Message
}

// ConfigurationError reports an invalid agent configuration. Fatal at
// startup.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "agent: configuration: " + e.Message
}

// PublicationError reports a failed property publication.
type PublicationError struct {
	Message string
	Field   string
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("agent: publishing %s: %s", e.Field, e.Message)
}

// ClaimBufferError reports a failed zero-copy claim. The publish is
// dropped and retried by its strategy on a later cycle.
type ClaimBufferError struct {
	Stream      string
	Length      int
	MaxAttempts int
}

func (e *ClaimBufferError) Error() string {
	return fmt.Sprintf("agent: claiming %d bytes on %s failed after %d attempts", e.Length, e.Stream, e.MaxAttempts)
}

// BackPressureError reports an offer rejected for lack of stream
// space. The publish is dropped and retried by its strategy.
type BackPressureError struct {
	Stream      string
	MaxAttempts int
}

func (e *BackPressureError) Error() string {
	return fmt.Sprintf("agent: back-pressure on %s after %d attempts", e.Stream, e.MaxAttempts)
}

// PublicationFailureError reports an offer that failed for a reason
// other than back-pressure (stream closed or reorganizing).
type PublicationFailureError struct {
	Stream      string
	MaxAttempts int
}

func (e *PublicationFailureError) Error() string {
	return fmt.Sprintf("agent: publication on %s failed after %d attempts", e.Stream, e.MaxAttempts)
}

// StreamNotFoundError reports a publication registration against a
// stream index the agent does not have. Fatal at registration.
type StreamNotFoundError struct {
	StreamName  string
	StreamIndex int
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("agent: stream %q index %d not found", e.StreamName, e.StreamIndex)
}

// NotInitializedError reports use of a communication surface before
// OnStart or after OnClose. Programmer error.
type NotInitializedError struct {
	Op string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("agent: %s before communications are initialized", e.Op)
}

// DuplicateNameError reports a poller registration under a name that
// is already active or pending addition.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("agent: poller %q already registered", e.Name)
}

// TimerNotFoundError reports a cancel of an unknown timer ID.
type TimerNotFoundError struct {
	ID int64
}

func (e *TimerNotFoundError) Error() string {
	return fmt.Sprintf("agent: timer %d not found", e.ID)
}

// InvalidTimerError reports a malformed timer operation.
type InvalidTimerError struct {
	Reason string
}

func (e *InvalidTimerError) Error() string {
	return "agent: invalid timer: " + e.Reason
}

// TimerSchedulingError reports a rejected schedule request.
type TimerSchedulingError struct {
	Reason     string
	DeadlineNs int64
}

func (e *TimerSchedulingError) Error() string {
	return fmt.Sprintf("agent: scheduling timer at %d: %s", e.DeadlineNs, e.Reason)
}
