// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
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

type testHarness struct {
	agent  *Agent
	fake   *clock.FakeClock
	driver *transport.MemoryDriver

	status transport.Subscription
	data   transport.Subscription
	ctl    transport.Publication

	decoder  *wire.Decoder
	received []receivedMsg
}

type receivedMsg struct {
	Key           string
	Format        wire.Format
	Int           int64
	Float         float64
	Str           string
	CorrelationID int64
	TimestampNs   int64
}

// newHarness builds an agent on a fake clock and a shared memory
// driver, with the observing subscriptions attached before OnStart so
// no publish is dropped as not-connected.
func newHarness(t *testing.T, initialNs int64, mutate func(*config.Config)) *testHarness {
	t.Helper()
	h := &testHarness{
		fake:    clock.Fake(initialNs),
		driver:  transport.NewMemoryDriver(transport.MemoryConfig{}),
		decoder: wire.NewDecoder(),
	}
	t.Cleanup(func() { _ = h.driver.Close() })

	quiet := int64(time.Hour)
	cfg := &config.Config{
		BlockName:         "testblock",
		BlockID:           7,
		Status:            config.Stream{URI: "mem://status", StreamID: 1},
		Control:           config.Stream{URI: "mem://control", StreamID: 2},
		Outputs:           []config.Stream{{URI: "mem://data", StreamID: 3}},
		HeartbeatPeriodNs: quiet,
		StatsPeriodNs:     quiet,
		GCStatsPeriodNs:   quiet,
		CountersPath:      filepath.Join(t.TempDir(), "counters.dat"),
	}
	if mutate != nil {
		mutate(cfg)
	}

	var err error
	if h.status, err = h.driver.AddSubscription(cfg.Status.URI, cfg.Status.StreamID); err != nil {
		t.Fatal(err)
	}
	if h.data, err = h.driver.AddSubscription(cfg.Outputs[0].URI, cfg.Outputs[0].StreamID); err != nil {
		t.Fatal(err)
	}
	if h.ctl, err = h.driver.AddPublication(cfg.Control.URI, cfg.Control.StreamID); err != nil {
		t.Fatal(err)
	}

	h.agent, err = New(Options{
		Config: cfg,
		Clock:  h.fake,
		Driver: h.driver,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Properties: []props.Spec{
			{Name: "X", Format: wire.FormatInt},
			{Name: "Y", Format: wire.FormatInt},
			{Name: "Position", Format: wire.FormatFloat},
			{Name: "Secret", Format: wire.FormatInt, Access: props.Writable},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.agent.OnClose)

	if err := h.agent.OnStart(); err != nil {
		t.Fatal(err)
	}
	return h
}

// drain empties a subscription into h.received.
func (h *testHarness) drain(t *testing.T, subscription transport.Subscription) []receivedMsg {
	t.Helper()
	h.received = h.received[:0]
	assembler := transport.NewFragmentAssembler(func(buffer []byte, _ transport.Flags) {
		var m wire.Message
		if _, err := h.decoder.Decode(buffer, &m); err != nil {
			t.Fatalf("decoding observed message: %v", err)
		}
		r := receivedMsg{
			Key:           string(m.Key),
			Format:        m.Value.Format,
			Int:           m.Value.Int,
			Float:         m.Value.Float,
			CorrelationID: m.CorrelationID,
			TimestampNs:   m.TimestampNs,
		}
		if m.Value.Format == wire.FormatSymbol || m.Value.Format == wire.FormatString {
			r.Str = string(m.Value.Bytes)
		}
		h.received = append(h.received, r)
	}, 1<<16)
	for {
		if subscription.Poll(assembler.OnFragment, 64) == 0 {
			break
		}
	}
	return h.received
}

func countKey(msgs []receivedMsg, key string) int {
	n := 0
	for _, m := range msgs {
		if m.Key == key {
			n++
		}
	}
	return n
}

// sendControl publishes one message on the agent's control stream.
func (h *testHarness) sendControl(t *testing.T, key string, value wire.Value, timestampNs int64) {
	t.Helper()
	m := wire.Message{
		TimestampNs:   timestampNs,
		CorrelationID: 555,
		Tag:           []byte("operator"),
		Key:           []byte(key),
		Value:         value,
	}
	buf := make([]byte, wire.EncodedLength(&m))
	n, ok := wire.EncodeMessage(buf, &m)
	if !ok {
		t.Fatal("encoding control message")
	}
	if result := h.ctl.Offer(buf[:n]); result != transport.OfferSuccess {
		t.Fatalf("offering control message: %v", result)
	}
}

func TestStartEntersStoppedAndNotifies(t *testing.T) {
	h := newHarness(t, 0, nil)

	if state := h.agent.CurrentState(); state != "Stopped" {
		t.Errorf("state after start = %q, want Stopped", state)
	}
	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventStateChange); n != 1 {
		t.Errorf("StateChange events after start = %d, want 1", n)
	}
	for _, m := range msgs {
		if m.Key == EventStateChange && m.Str != "Stopped" {
			t.Errorf("StateChange payload = %q, want Stopped", m.Str)
		}
	}
}

func TestDoWorkCountsCyclesAndWork(t *testing.T) {
	h := newHarness(t, 0, nil)
	dutyCycles, workDone, _ := h.agent.Counters()

	baseCycles := dutyCycles.Get()
	baseWork := workDone.Get()

	// The first cycle fires the startup heartbeat (one unit of timer
	// work); later cycles are idle.
	work := h.agent.DoWork()
	if work < 1 {
		t.Errorf("first cycle work = %d, want at least the heartbeat", work)
	}
	if got := dutyCycles.Get(); got != baseCycles+1 {
		t.Errorf("TotalDutyCycles = %d, want %d", got, baseCycles+1)
	}
	if got := workDone.Get(); got != baseWork+int64(work) {
		t.Errorf("TotalWorkDone = %d, want %d", got, baseWork+int64(work))
	}

	idle := h.agent.DoWork()
	if idle != 0 {
		t.Errorf("idle cycle work = %d, want 0", idle)
	}
	if got := dutyCycles.Get(); got != baseCycles+2 {
		t.Errorf("TotalDutyCycles = %d, want %d", got, baseCycles+2)
	}
}

func TestCustomPollerPriorityOrder(t *testing.T) {
	h := newHarness(t, 0, nil)
	var order []string
	record := func(name string) Poller {
		return PollerFunc(func(*Agent) int {
			order = append(order, name)
			return 0
		})
	}

	for _, p := range []struct {
		name     string
		priority int
	}{{"A", 5}, {"B", 100}, {"C", 20}, {"D", 500}} {
		if err := h.agent.RegisterPoller(p.name, p.priority, record(p.name)); err != nil {
			t.Fatal(err)
		}
	}

	h.agent.DoWork() // additions apply at the end of this cycle
	order = order[:0]
	h.agent.DoWork()

	want := []string{"A", "C", "B", "D"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEqualPriorityPollersFIFO(t *testing.T) {
	h := newHarness(t, 0, nil)
	var order []string
	record := func(name string) Poller {
		return PollerFunc(func(*Agent) int {
			order = append(order, name)
			return 0
		})
	}
	if err := h.agent.RegisterPoller("P", 150, record("P")); err != nil {
		t.Fatal(err)
	}
	if err := h.agent.RegisterPoller("Q", 150, record("Q")); err != nil {
		t.Fatal(err)
	}

	h.agent.DoWork()
	order = order[:0]
	h.agent.DoWork()

	if len(order) != 2 || order[0] != "P" || order[1] != "Q" {
		t.Errorf("order = %v, want [P Q]", order)
	}
}

func TestPollerRegisteredMidCycleRunsNextCycle(t *testing.T) {
	h := newHarness(t, 0, nil)
	lateRuns := 0
	late := PollerFunc(func(*Agent) int {
		lateRuns++
		return 0
	})

	registered := false
	trigger := PollerFunc(func(a *Agent) int {
		if !registered {
			registered = true
			if err := a.RegisterPoller("late", 1, late); err != nil {
				t.Error(err)
			}
		}
		return 0
	})
	if err := h.agent.RegisterPoller("trigger", 5, trigger); err != nil {
		t.Fatal(err)
	}

	h.agent.DoWork() // trigger becomes active
	h.agent.DoWork() // trigger registers late; late must not run yet
	if lateRuns != 0 {
		t.Fatalf("late poller ran %d times in its registration cycle", lateRuns)
	}
	h.agent.DoWork()
	if lateRuns != 1 {
		t.Errorf("late poller ran %d times in the following cycle, want 1", lateRuns)
	}
}

func TestPollerUnregisteredMidCycleStops(t *testing.T) {
	h := newHarness(t, 0, nil)
	victimRuns := 0
	victim := PollerFunc(func(*Agent) int {
		victimRuns++
		return 0
	})
	// The assassin runs first (priority 1 < victim's 300) and
	// unregisters the victim; the victim still runs this cycle.
	assassin := PollerFunc(func(a *Agent) int {
		a.UnregisterPoller("victim")
		return 0
	})
	if err := h.agent.RegisterPoller("victim", 300, victim); err != nil {
		t.Fatal(err)
	}
	if err := h.agent.RegisterPoller("assassin", 1, assassin); err != nil {
		t.Fatal(err)
	}

	h.agent.DoWork() // both become active
	h.agent.DoWork() // assassin unregisters victim; victim still runs
	if victimRuns != 1 {
		t.Fatalf("victim ran %d times in its removal cycle, want 1", victimRuns)
	}
	h.agent.DoWork()
	if victimRuns != 1 {
		t.Errorf("victim ran after removal (total %d)", victimRuns)
	}
}

func TestPlayPublishesOneStateChange(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.drain(t, h.status)

	h.agent.Dispatch(hsm.Event{ID: h.agent.events.play, TimeNs: h.fake.Nanos()})
	if state := h.agent.CurrentState(); state != "Playing" {
		t.Fatalf("state = %q, want Playing", state)
	}

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventStateChange); n != 1 {
		t.Fatalf("StateChange events = %d, want 1", n)
	}
	for _, m := range msgs {
		if m.Key == EventStateChange && m.Str != "Playing" {
			t.Errorf("StateChange payload = %q, want Playing", m.Str)
		}
	}
}

func TestHeartbeatCadenceAndReschedule(t *testing.T) {
	h := newHarness(t, 0, func(cfg *config.Config) {
		cfg.HeartbeatPeriodNs = 1_000_000
	})

	// Cycles sample t = 0, 0.5ms, ..., 9.5ms. The heartbeat lands at
	// t=0 and every whole millisecond after: 10 firings.
	for cycle := 0; cycle < 20; cycle++ {
		h.agent.DoWork()
		h.fake.Advance(500_000)
	}

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventHeartbeat); n != 10 {
		t.Errorf("heartbeats = %d, want 10", n)
	}
	for _, m := range msgs {
		if m.Key == EventHeartbeat && m.Str != "Stopped" {
			t.Errorf("heartbeat payload = %q, want current leaf Stopped", m.Str)
		}
	}
}

func TestPeriodicPublicationCadence(t *testing.T) {
	h := newHarness(t, 0, nil)
	if _, err := h.agent.RegisterPublication("X", 1, PeriodicStrategy(1_000_000)); err != nil {
		t.Fatal(err)
	}
	h.agent.Dispatch(hsm.Event{ID: h.agent.events.play})

	_, _, published := h.agent.Counters()
	base := published.Get()

	for cycle := 0; cycle < 25; cycle++ {
		h.fake.Advance(400_000)
		h.agent.DoWork()
	}

	if fired := published.Get() - base; fired != 10 {
		t.Errorf("PropertiesPublished advanced by %d, want 10", fired)
	}
	msgs := h.drain(t, h.data)
	if n := countKey(msgs, "X"); n != 10 {
		t.Errorf("data stream carried %d X messages, want 10", n)
	}
}

func TestOnUpdateWithStaticClock(t *testing.T) {
	h := newHarness(t, 1000, nil)
	h.agent.Dispatch(hsm.Event{ID: h.agent.events.play})

	key := h.agent.Store().Lookup("Y")
	if err := h.agent.Store().SetInt64(key, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := h.agent.RegisterPublication("Y", 1, OnUpdateStrategy()); err != nil {
		t.Fatal(err)
	}

	for cycle := 0; cycle < 5; cycle++ {
		h.agent.DoWork()
	}
	msgs := h.drain(t, h.data)
	if n := countKey(msgs, "Y"); n != 1 {
		t.Fatalf("publishes after one write = %d, want 1", n)
	}

	// A second write under the same clock reading does not advance
	// the property timestamp, so nothing more is published.
	if err := h.agent.Store().SetInt64(key, 43); err != nil {
		t.Fatal(err)
	}
	for cycle := 0; cycle < 5; cycle++ {
		h.agent.DoWork()
	}
	if msgs := h.drain(t, h.data); len(msgs) != 0 {
		t.Errorf("publishes after same-timestamp write = %d, want 0", len(msgs))
	}

	// Advancing the clock and writing again publishes exactly once.
	h.fake.Advance(1)
	if err := h.agent.Store().SetInt64(key, 44); err != nil {
		t.Fatal(err)
	}
	for cycle := 0; cycle < 5; cycle++ {
		h.agent.DoWork()
	}
	msgs = h.drain(t, h.data)
	if n := countKey(msgs, "Y"); n != 1 {
		t.Errorf("publishes after advancing write = %d, want 1", n)
	}
}

func TestPublishPropertyIgnoredOutsidePlaying(t *testing.T) {
	h := newHarness(t, 0, nil)
	if _, err := h.agent.RegisterPublication("X", 1, PeriodicStrategy(1_000_000)); err != nil {
		t.Fatal(err)
	}
	// Stopped: the poller dispatches, but no state handles the event,
	// so nothing reaches the data stream.
	for cycle := 0; cycle < 10; cycle++ {
		h.fake.Advance(1_000_000)
		h.agent.DoWork()
	}
	if msgs := h.drain(t, h.data); len(msgs) != 0 {
		t.Errorf("data stream carried %d messages while Stopped", len(msgs))
	}
}

func TestPropertyWriteViaControl(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.drain(t, h.status)

	h.sendControl(t, "X", wire.Int64(42), h.fake.Nanos())
	h.agent.DoWork()

	key := h.agent.Store().Lookup("X")
	value, err := h.agent.Store().Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if value.Int != 42 {
		t.Errorf("X = %d after control write, want 42", value.Int)
	}

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, "X"); n != 1 {
		t.Fatalf("echo responses = %d, want 1", n)
	}
	for _, m := range msgs {
		if m.Key == "X" {
			if m.Int != 42 || m.CorrelationID != 555 {
				t.Errorf("echo = %+v", m)
			}
		}
	}
}

func TestPropertyReadViaControl(t *testing.T) {
	h := newHarness(t, 0, nil)
	key := h.agent.Store().Lookup("Position")
	if err := h.agent.Store().SetFloat64(key, 2.75); err != nil {
		t.Fatal(err)
	}
	h.drain(t, h.status)

	h.sendControl(t, "Position", wire.Nothing(), h.fake.Nanos())
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, "Position"); n != 1 {
		t.Fatalf("read responses = %d, want 1", n)
	}
	for _, m := range msgs {
		if m.Key == "Position" && m.Float != 2.75 {
			t.Errorf("read response = %+v", m)
		}
	}
}

func TestInvalidPropertyWritePublishesError(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.drain(t, h.status)

	// LogLevel validation failure: not a recognized level name.
	h.sendControl(t, "LogLevel", wire.Symbol([]byte("shouty")), h.fake.Nanos())
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventError); n != 1 {
		t.Errorf("Error events = %d, want 1 (got %+v)", n, msgs)
	}
	if state := h.agent.CurrentState(); state != "Stopped" {
		t.Errorf("state after handled error = %q, want Stopped", state)
	}
}

func TestTypeMismatchWritePublishesError(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.drain(t, h.status)

	h.sendControl(t, "X", wire.Float64(1.5), h.fake.Nanos())
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventError); n != 1 {
		t.Errorf("Error events = %d, want 1", n)
	}
	key := h.agent.Store().Lookup("X")
	if ts := h.agent.Store().LastUpdateNs(key); ts != 0 {
		t.Errorf("rejected write advanced timestamp to %d", ts)
	}
}

func TestStateRequest(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.agent.Dispatch(hsm.Event{ID: h.agent.events.play})
	h.drain(t, h.status)

	h.sendControl(t, EventState, wire.Nothing(), h.fake.Nanos())
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventState); n != 1 {
		t.Fatalf("State responses = %d, want 1", n)
	}
	for _, m := range msgs {
		if m.Key == EventState && m.Str != "Playing" {
			t.Errorf("State response = %q, want Playing", m.Str)
		}
	}
}

func TestPropertiesRequestListsReadable(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.drain(t, h.status)

	h.sendControl(t, EventProperties, wire.Nothing(), h.fake.Nanos())
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	// LogLevel, X, Y, Position are readable; Secret is write-only.
	for _, key := range []string{"LogLevel", "X", "Y", "Position"} {
		if countKey(msgs, key) != 1 {
			t.Errorf("no response for readable property %s (got %+v)", key, msgs)
		}
	}
	if countKey(msgs, "Secret") != 0 {
		t.Error("write-only property listed")
	}
}

func TestLateMessage(t *testing.T) {
	h := newHarness(t, 10_000, func(cfg *config.Config) {
		cfg.LateMessageThresholdNs = 1000
	})
	h.drain(t, h.status)

	// Stale by 2000ns against a 1000ns threshold.
	h.sendControl(t, "X", wire.Int64(9), h.fake.Nanos()-2000)
	h.agent.DoWork()

	msgs := h.drain(t, h.status)
	if n := countKey(msgs, EventLateMessage); n != 1 {
		t.Errorf("LateMessage responses = %d, want 1", n)
	}
	key := h.agent.Store().Lookup("X")
	if value, _ := h.agent.Store().Get(key); value.Int == 9 {
		t.Error("late write was applied")
	}
}

func TestControlFilterDropsForeignTags(t *testing.T) {
	h := newHarness(t, 0, func(cfg *config.Config) {
		cfg.ControlFilter = "somebody-else"
	})
	h.agent.DoWork() // consume the startup heartbeat
	h.drain(t, h.status)

	h.sendControl(t, "X", wire.Int64(1), h.fake.Nanos()) // tag "operator"
	h.agent.DoWork()

	key := h.agent.Store().Lookup("X")
	if value, _ := h.agent.Store().Get(key); value.Int == 1 {
		t.Error("filtered message was applied")
	}
	if msgs := h.drain(t, h.status); len(msgs) != 0 {
		t.Errorf("filtered message produced %d responses", len(msgs))
	}
}

func TestExitTerminates(t *testing.T) {
	h := newHarness(t, 0, nil)

	h.agent.Dispatch(hsm.Event{ID: h.agent.events.exit})
	if !h.agent.Terminated() {
		t.Fatal("agent not terminated after Exit")
	}
	if state := h.agent.CurrentState(); state != "Exit" {
		t.Errorf("state = %q, want Exit", state)
	}
}

func TestRegisterPublicationValidation(t *testing.T) {
	h := newHarness(t, 0, nil)

	var notFound *props.NotFoundError
	if _, err := h.agent.RegisterPublication("Nope", 1, OnUpdateStrategy()); !errors.As(err, &notFound) {
		t.Errorf("unknown field = %v, want props.NotFoundError", err)
	}
	var streamErr *StreamNotFoundError
	if _, err := h.agent.RegisterPublication("X", 2, OnUpdateStrategy()); !errors.As(err, &streamErr) {
		t.Errorf("bad stream index = %v, want StreamNotFoundError", err)
	}
	if _, err := h.agent.RegisterPublication("X", 0, OnUpdateStrategy()); !errors.As(err, &streamErr) {
		t.Errorf("zero stream index = %v, want StreamNotFoundError", err)
	}
}

func TestDoWorkDoesNotAllocateAfterWarmup(t *testing.T) {
	h := newHarness(t, 0, func(cfg *config.Config) {
		cfg.HeartbeatPeriodNs = 1_000_000
		cfg.StatsPeriodNs = 2_000_000
		cfg.GCStatsPeriodNs = 5_000_000
	})
	if _, err := h.agent.RegisterPublication("Position", 1, PeriodicStrategy(1_000_000)); err != nil {
		t.Fatal(err)
	}
	h.agent.Dispatch(hsm.Event{ID: h.agent.events.play})

	noop := func([]byte, transport.Flags) {}

	// Warm up past every timer period so all steady-state paths have
	// run at least once.
	for cycle := 0; cycle < 100; cycle++ {
		h.fake.Advance(200_000)
		h.agent.DoWork()
		h.status.Poll(noop, 64)
		h.data.Poll(noop, 64)
	}

	allocs := testing.AllocsPerRun(100, func() {
		h.fake.Advance(200_000)
		h.agent.DoWork()
		h.status.Poll(noop, 64)
		h.data.Poll(noop, 64)
	})
	if allocs != 0 {
		t.Errorf("duty cycle allocates %.2f per cycle after warmup, want 0", allocs)
	}
}
