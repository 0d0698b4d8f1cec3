// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadence-rtc/cadence/hsm"
	"github.com/cadence-rtc/cadence/lib/clock"
	"github.com/cadence-rtc/cadence/lib/config"
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/transport"
	"github.com/cadence-rtc/cadence/wire"
)

func benchAgent(b *testing.B, publications int) (*Agent, *clock.FakeClock) {
	b.Helper()
	fake := clock.Fake(0)
	driver := transport.NewMemoryDriver(transport.MemoryConfig{})
	b.Cleanup(func() { _ = driver.Close() })

	quiet := int64(time.Hour)
	cfg := &config.Config{
		BlockName:         "bench",
		BlockID:           1,
		Status:            config.Stream{URI: "mem://status", StreamID: 1},
		Control:           config.Stream{URI: "mem://control", StreamID: 2},
		Outputs:           []config.Stream{{URI: "mem://data", StreamID: 3}},
		HeartbeatPeriodNs: quiet,
		StatsPeriodNs:     quiet,
		GCStatsPeriodNs:   quiet,
		CountersPath:      filepath.Join(b.TempDir(), "counters.dat"),
	}

	specs := make([]props.Spec, 0, publications)
	for i := 0; i < publications; i++ {
		specs = append(specs, props.Spec{
			Name:   "Metric" + string(rune('A'+i)),
			Format: wire.FormatFloat,
		})
	}

	a, err := New(Options{
		Config:     cfg,
		Clock:      fake,
		Driver:     driver,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Properties: specs,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(a.OnClose)
	if err := a.OnStart(); err != nil {
		b.Fatal(err)
	}
	return a, fake
}

func BenchmarkDoWorkIdle(b *testing.B) {
	a, _ := benchAgent(b, 0)
	a.DoWork() // consume the startup heartbeat

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.DoWork()
	}
}

func BenchmarkDoWorkPublishing(b *testing.B) {
	a, fake := benchAgent(b, 8)
	for i := 0; i < 8; i++ {
		name := "Metric" + string(rune('A'+i))
		if _, err := a.RegisterPublication(name, 1, PeriodicStrategy(1000)); err != nil {
			b.Fatal(err)
		}
	}
	a.Dispatch(hsm.Event{ID: a.events.play})
	a.DoWork()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fake.Advance(1000)
		a.DoWork()
	}
}

func BenchmarkDispatch(b *testing.B) {
	a, _ := benchAgent(b, 0)
	a.DoWork()

	play := hsm.Event{ID: a.events.play}
	stop := hsm.Event{ID: a.events.stop}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Dispatch(play)
		a.Dispatch(stop)
	}
}
