// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvironmentVariableError reports a required variable that is unset
// or unparsable.
type EnvironmentVariableError struct {
	Name   string
	Reason string
}

func (e *EnvironmentVariableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: environment variable %s not set", e.Name)
	}
	return fmt.Sprintf("config: environment variable %s: %s", e.Name, e.Reason)
}

// Stream names one transport endpoint.
type Stream struct {
	URI      string
	StreamID int32
}

// Config is the full agent configuration.
type Config struct {
	// BlockName is the agent name used in counter labels and message
	// tags.
	BlockName string
	// BlockID is the 64-bit node ID used by the correlation ID
	// generator and counter keys.
	BlockID int64

	// Status is the status publication endpoint.
	Status Stream
	// Control is the control subscription endpoint.
	Control Stream
	// ControlFilter, when non-empty, restricts control messages to
	// those whose tag matches exactly.
	ControlFilter string

	// Outputs are the data publication endpoints, in PUB_DATA_URI_<N>
	// order starting at N=1.
	Outputs []Stream
	// Inputs are the data subscription endpoints.
	Inputs []Stream

	// HeartbeatPeriodNs is the heartbeat reschedule period.
	HeartbeatPeriodNs int64
	// LateMessageThresholdNs is the age beyond which an inbound
	// message dispatches a late-message event instead of its own.
	// Zero disables the check.
	LateMessageThresholdNs int64
	// StatsPeriodNs is the stats derivation period.
	StatsPeriodNs int64
	// GCStatsPeriodNs is the memory-stats publish period.
	GCStatsPeriodNs int64

	// LogLevel is the symbolic logging threshold (debug, info, warn,
	// error).
	LogLevel string

	// CountersPath locates the shared counters file. Empty means the
	// conventional default location.
	CountersPath string

	// DefaultsPath and ManifestPath are the optional supplement
	// files.
	DefaultsPath string
	ManifestPath string
}

// Defaults for the optional period variables.
const (
	DefaultHeartbeatPeriod = 10 * time.Second
	DefaultStatsPeriod     = 5 * time.Second
	DefaultGCStatsPeriod   = 10 * time.Second
)

// FromEnv reads the agent environment. All problems are accumulated
// and returned as one joined error.
func FromEnv() (*Config, error) {
	var errs []error

	requireString := func(name string) string {
		value := os.Getenv(name)
		if value == "" {
			errs = append(errs, &EnvironmentVariableError{Name: name})
		}
		return value
	}
	requireInt := func(name string) int64 {
		raw := os.Getenv(name)
		if raw == "" {
			errs = append(errs, &EnvironmentVariableError{Name: name})
			return 0
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, &EnvironmentVariableError{Name: name, Reason: err.Error()})
		}
		return value
	}
	optionalInt := func(name string, fallback int64) int64 {
		raw := os.Getenv(name)
		if raw == "" {
			return fallback
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, &EnvironmentVariableError{Name: name, Reason: err.Error()})
			return fallback
		}
		return value
	}

	cfg := &Config{
		BlockName: requireString("BLOCK_NAME"),
		BlockID:   requireInt("BLOCK_ID"),
		Status: Stream{
			URI:      requireString("STATUS_URI"),
			StreamID: int32(requireInt("STATUS_STREAM_ID")),
		},
		Control: Stream{
			URI:      requireString("CONTROL_URI"),
			StreamID: int32(requireInt("CONTROL_STREAM_ID")),
		},
		ControlFilter:          os.Getenv("CONTROL_FILTER"),
		HeartbeatPeriodNs:      optionalInt("HEARTBEAT_PERIOD_NS", DefaultHeartbeatPeriod.Nanoseconds()),
		LateMessageThresholdNs: optionalInt("LATE_MESSAGE_THRESHOLD_NS", 0),
		StatsPeriodNs:          optionalInt("STATS_PERIOD_NS", DefaultStatsPeriod.Nanoseconds()),
		GCStatsPeriodNs:        optionalInt("GC_STATS_PERIOD_NS", DefaultGCStatsPeriod.Nanoseconds()),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		CountersPath:           os.Getenv("COUNTERS_FILE"),
		DefaultsPath:           os.Getenv("CADENCE_DEFAULTS"),
		ManifestPath:           os.Getenv("CADENCE_MANIFEST"),
	}

	// Numbered stream lists stop at the first gap: PUB_DATA_URI_1,
	// PUB_DATA_URI_2, ... Each URI requires its matching stream ID.
	for n := 1; ; n++ {
		uri := os.Getenv(fmt.Sprintf("PUB_DATA_URI_%d", n))
		if uri == "" {
			break
		}
		id := requireInt(fmt.Sprintf("PUB_DATA_STREAM_%d", n))
		cfg.Outputs = append(cfg.Outputs, Stream{URI: uri, StreamID: int32(id)})
	}
	for n := 1; ; n++ {
		uri := os.Getenv(fmt.Sprintf("SUB_DATA_URI_%d", n))
		if uri == "" {
			break
		}
		id := requireInt(fmt.Sprintf("SUB_DATA_STREAM_%d", n))
		cfg.Inputs = append(cfg.Inputs, Stream{URI: uri, StreamID: int32(id)})
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.HeartbeatPeriodNs <= 0 {
		errs = append(errs, fmt.Errorf("config: HEARTBEAT_PERIOD_NS must be positive"))
	}
	if c.StatsPeriodNs <= 0 {
		errs = append(errs, fmt.Errorf("config: STATS_PERIOD_NS must be positive"))
	}
	if c.GCStatsPeriodNs <= 0 {
		errs = append(errs, fmt.Errorf("config: GC_STATS_PERIOD_NS must be positive"))
	}
	if c.LateMessageThresholdNs < 0 {
		errs = append(errs, fmt.Errorf("config: LATE_MESSAGE_THRESHOLD_NS must not be negative"))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: LOG_LEVEL %q not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}
