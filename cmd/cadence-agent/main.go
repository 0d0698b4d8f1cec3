// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// cadence-agent hosts a reference Cadence agent configured entirely
// from the environment (see lib/config for the variable set).
//
// The agent carries a small demonstration property set (Position,
// Velocity, Mode, Enabled) alongside the built-in LogLevel property.
// Publication registrations come from the CADENCE_MANIFEST file;
// initial property values from CADENCE_DEFAULTS.
//
// With --record, the process attaches a flight recorder to its own
// status stream, capturing every published status event into a
// compressed, hashed segment file that cadence-record can verify and
// inspect offline.
//
// SIGINT and SIGTERM stop the duty-cycle loop and run the agent's
// close path.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/cadence-rtc/cadence/agent"
	"github.com/cadence-rtc/cadence/lib/config"
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/recorder"
	"github.com/cadence-rtc/cadence/runner"
	"github.com/cadence-rtc/cadence/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		idleName    string
		recordPath  string
		compression string
	)
	flags := pflag.NewFlagSet("cadence-agent", pflag.ContinueOnError)
	flags.StringVar(&idleName, "idle", "backoff", "idle strategy: busy, yield, sleep, backoff")
	flags.StringVar(&recordPath, "record", "", "record the status stream to this file")
	flags.StringVar(&compression, "record-compression", "zstd", "recording compression: none, lz4, zstd")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	idle, err := idleStrategy(idleName)
	if err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	a, err := agent.New(agent.Options{
		Config:     cfg,
		Properties: demoProperties(),
	})
	if err != nil {
		return err
	}

	if recordPath != "" {
		stop, err := attachRecorder(a, cfg, recordPath, compression)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = runner.New(a, idle).Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func idleStrategy(name string) (runner.IdleStrategy, error) {
	switch name {
	case "busy":
		return runner.BusySpin{}, nil
	case "yield":
		return runner.Yielding{}, nil
	case "sleep":
		return runner.Sleeping{}, nil
	case "backoff":
		return &runner.Backoff{}, nil
	default:
		return nil, fmt.Errorf("unknown idle strategy %q", name)
	}
}

// demoProperties is the reference agent's property set.
func demoProperties() []props.Spec {
	return []props.Spec{
		{Name: "Position", Format: wire.FormatFloat},
		{Name: "Velocity", Format: wire.FormatFloat},
		{Name: "Mode", Format: wire.FormatSymbol, Initial: wire.Symbol([]byte("idle"))},
		{Name: "Enabled", Format: wire.FormatBool, Initial: wire.Bool(true)},
	}
}

// attachRecorder subscribes to the agent's own status endpoint and
// registers a low-priority poller that drains it into the recording.
// The agent publishes, the recorder consumes: a single-process flight
// recorder over the in-memory stream.
func attachRecorder(a *agent.Agent, cfg *config.Config, path, compression string) (func(), error) {
	tag, err := recorder.ParseCompressionTag(compression)
	if err != nil {
		return nil, err
	}

	subscription, err := a.StatusSubscription()
	if err != nil {
		return nil, err
	}

	rec, err := recorder.New(subscription, path, recorder.Config{
		Compression: tag,
		Channel:     cfg.Status.URI,
		StreamID:    cfg.Status.StreamID,
	})
	if err != nil {
		return nil, err
	}

	err = a.RegisterPoller("status_recorder", 500, agent.PollerFunc(func(*agent.Agent) int {
		n, err := rec.Poll(64)
		if err != nil {
			a.Log().Error("recording poll failed", "error", err)
		}
		return n
	}))
	if err != nil {
		_ = rec.Close()
		return nil, err
	}

	return func() {
		segments, messages := rec.Stats()
		if err := rec.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing recording: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "recorded %d messages in %d segments to %s\n", messages, segments, path)
	}, nil
}
