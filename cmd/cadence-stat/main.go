// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// cadence-stat watches the shared counters file that Cadence agents
// publish their runtime counters into.
//
// By default it runs a live TUI refreshing at the configured
// interval, showing each counter's label, current value, and
// per-second rate. With --once it prints a single plain-text snapshot
// and exits, which is the mode to use from scripts.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cadence-rtc/cadence/observe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		path     string
		interval time.Duration
		once     bool
	)
	flags := pflag.NewFlagSet("cadence-stat", pflag.ContinueOnError)
	flags.StringVar(&path, "file", observe.DefaultPath(), "counters file to watch")
	flags.DurationVar(&interval, "interval", time.Second, "refresh interval")
	flags.BoolVar(&once, "once", false, "print one snapshot and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	reader, err := observe.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if once {
		return printSnapshot(reader)
	}

	program := tea.NewProgram(newModel(reader, path, interval), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func printSnapshot(reader *observe.Reader) error {
	count := 0
	reader.ForEach(func(record observe.CounterRecord) {
		fmt.Printf("%4d  %20d  %s\n", record.ID, record.Value, record.Label)
		count++
	})
	if count == 0 {
		fmt.Println("no counters allocated")
	}
	return nil
}
