// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/cadence-rtc/cadence/hsm"
	"github.com/cadence-rtc/cadence/lib/clock"
	"github.com/cadence-rtc/cadence/lib/config"
	"github.com/cadence-rtc/cadence/lib/ident"
	"github.com/cadence-rtc/cadence/lib/symbol"
	"github.com/cadence-rtc/cadence/observe"
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/transport"
	"github.com/cadence-rtc/cadence/wire"
)

// Counter type IDs in the shared counters file.
const (
	CounterTypeDutyCycles          = 1
	CounterTypeWorkDone            = 2
	CounterTypePropertiesPublished = 3
)

// Options configures agent construction. Config is required; every
// other field has a production default.
type Options struct {
	// Config is the agent environment configuration.
	Config *config.Config
	// Clock defaults to the system clock. Tests inject clock.Fake.
	Clock clock.Clock
	// Driver defaults to an in-process memory driver owned (and
	// closed) by the agent.
	Driver transport.Driver
	// Counters defaults to a file created at the configured path,
	// owned (and closed) by the agent.
	Counters *observe.CountersFile
	// Properties are the agent's property specs, appended after the
	// built-ins.
	Properties []props.Spec
	// Logger defaults to a JSON handler on stderr at the configured
	// level.
	Logger *slog.Logger
}

// Agent is one single-threaded unit of work. See the package
// documentation for the execution model. None of its methods are safe
// for concurrent use; exactly one goroutine owns the agent.
type Agent struct {
	name  string
	id    int64
	tag   []byte
	log   *slog.Logger
	level *slog.LevelVar

	symbols *symbol.Table
	events  eventSet
	states  stateSet

	clock   *clock.Cached
	store   *props.Store
	ids     *ident.Generator
	timers  *TimerScheduler
	pollers *pollerRegistry
	machine *hsm.Machine

	driver       transport.Driver
	ownsDriver   bool
	counters     *observe.CountersFile
	ownsCounters bool

	dutyCycles *observe.Counter
	workDone   *observe.Counter
	published  *observe.Counter

	status     *statusProxy
	property   *propertyProxy
	control    *streamAdapter
	inputs     *streamAdapter
	statusPub  transport.Publication
	controlSub transport.Subscription
	outputs    []transport.Publication
	inputSubs  []transport.Subscription

	publications []*PublicationConfig
	stateNames   [][]byte

	heartbeatPeriodNs int64
	statsPeriodNs     int64
	gcStatsPeriodNs   int64
	lateThresholdNs   int64

	lastStatsTimeNs  int64
	lastMessageCount int64
	lastWorkCount    int64
	messageCount     int64

	tupleScratch [4]wire.Value
	memStats     runtime.MemStats
	onTimer      func(event symbol.ID, nowNs int64)

	cfg        *config.Config
	started    bool
	closed     bool
	terminated bool
}

// New constructs an agent. Construction allocates everything the
// duty cycle will ever need; after OnStart the hot path performs no
// further allocation.
func New(options Options) (*Agent, error) {
	if options.Config == nil {
		return nil, &ConfigurationError{Message: "no config"}
	}
	cfg := options.Config

	source := options.Clock
	if source == nil {
		source = clock.System()
	}

	a := &Agent{
		name:              cfg.BlockName,
		id:                cfg.BlockID,
		tag:               []byte(cfg.BlockName),
		level:             new(slog.LevelVar),
		symbols:           symbol.NewTable(64),
		clock:             clock.NewCached(source),
		cfg:               cfg,
		heartbeatPeriodNs: cfg.HeartbeatPeriodNs,
		statsPeriodNs:     cfg.StatsPeriodNs,
		gcStatsPeriodNs:   cfg.GCStatsPeriodNs,
		lateThresholdNs:   cfg.LateMessageThresholdNs,
	}
	if err := a.level.UnmarshalText([]byte(levelName(cfg.LogLevel))); err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("log level %q: %v", cfg.LogLevel, err)}
	}
	a.log = options.Logger
	if a.log == nil {
		a.log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: a.level}))
	}
	a.log = a.log.With("agent", a.name, "node", a.id)

	a.events = internEvents(a.symbols)

	specs := make([]props.Spec, 0, len(options.Properties)+1)
	specs = append(specs, a.logLevelSpec(cfg.LogLevel))
	specs = append(specs, options.Properties...)
	store, err := props.NewStore(source, a.symbols, specs)
	if err != nil {
		return nil, err
	}
	a.store = store

	// The correlation generator uses the low bits of the block ID;
	// the full 64-bit identity lives in the counter keys and tags.
	generator, err := ident.NewGenerator(source, cfg.BlockID&ident.MaxNode)
	if err != nil {
		return nil, err
	}
	a.ids = generator

	a.timers = NewTimerScheduler(a.clock, 16)
	a.pollers = newPollerRegistry(16)
	a.buildMachine()
	// Bound once so the timers poller does not materialize a method
	// value per cycle.
	a.onTimer = a.fireTimer

	a.driver = options.Driver
	if a.driver == nil {
		a.driver = transport.NewMemoryDriver(transport.MemoryConfig{})
		a.ownsDriver = true
	}

	a.counters = options.Counters
	if a.counters == nil {
		path := cfg.CountersPath
		if path == "" {
			path = observe.DefaultPath()
		}
		counters, err := observe.CreateCounters(path, 0)
		if err != nil {
			return nil, err
		}
		a.counters = counters
		a.ownsCounters = true
	}
	key := observe.AgentKey(a.id, a.name)
	if a.dutyCycles, err = a.counters.Allocate(CounterTypeDutyCycles, key,
		observe.AgentLabel("TotalDutyCycles", a.id, a.name)); err != nil {
		return nil, err
	}
	if a.workDone, err = a.counters.Allocate(CounterTypeWorkDone, key,
		observe.AgentLabel("TotalWorkDone", a.id, a.name)); err != nil {
		return nil, err
	}
	if a.published, err = a.counters.Allocate(CounterTypePropertiesPublished, key,
		observe.AgentLabel("PropertiesPublished", a.id, a.name)); err != nil {
		return nil, err
	}

	return a, nil
}

// logLevelSpec is the built-in LogLevel property: a symbolic name
// whose setter switches the process logging threshold immediately.
func (a *Agent) logLevelSpec(initial string) props.Spec {
	return props.Spec{
		Name:    "LogLevel",
		Format:  wire.FormatSymbol,
		Access:  props.ReadWrite,
		Initial: wire.Symbol([]byte(levelName(initial))),
		Set: func(_ *props.Store, _ props.Key, value wire.Value) error {
			var level slog.Level
			if err := level.UnmarshalText(value.Bytes); err != nil {
				return &props.ValidationError{Name: "LogLevel", Message: err.Error()}
			}
			a.level.Set(level)
			return nil
		},
	}
}

func levelName(name string) string {
	if name == "" {
		return "info"
	}
	return name
}

// OnStart brings up communications, registers the built-in pollers,
// arms the recurring timers, and starts the state machine. The runner
// calls it exactly once before the first duty cycle.
func (a *Agent) OnStart() error {
	if a.started {
		return &StateError{CurrentState: a.CurrentState(), AttemptedOp: "start"}
	}

	var err error
	if a.statusPub, err = a.driver.AddPublication(a.cfg.Status.URI, a.cfg.Status.StreamID); err != nil {
		return &CommunicationError{Message: err.Error()}
	}
	if a.controlSub, err = a.driver.AddSubscription(a.cfg.Control.URI, a.cfg.Control.StreamID); err != nil {
		return &CommunicationError{Message: err.Error()}
	}
	for _, stream := range a.cfg.Outputs {
		publication, err := a.driver.AddPublication(stream.URI, stream.StreamID)
		if err != nil {
			return &CommunicationError{Message: err.Error()}
		}
		a.outputs = append(a.outputs, publication)
	}
	for _, stream := range a.cfg.Inputs {
		subscription, err := a.driver.AddSubscription(stream.URI, stream.StreamID)
		if err != nil {
			return &CommunicationError{Message: err.Error()}
		}
		a.inputSubs = append(a.inputSubs, subscription)
	}

	a.status = newStatusProxy(a.statusPub, a.tag)
	a.property = newPropertyProxy(a.tag)
	a.control = newStreamAdapter(a, []transport.Subscription{a.controlSub}, controlFragmentLimit, a.cfg.ControlFilter)
	a.inputs = newStreamAdapter(a, a.inputSubs, inputFragmentLimit, "")

	if err := a.applyDefaults(); err != nil {
		return err
	}

	if err := a.RegisterPoller(PollerInputStreams, PriorityInputStreams, a.inputs); err != nil {
		return err
	}
	if err := a.RegisterPoller(PollerProperties, PriorityProperties, PollerFunc((*Agent).pollProperties)); err != nil {
		return err
	}
	if err := a.RegisterPoller(PollerTimers, PriorityTimers, PollerFunc((*Agent).pollTimers)); err != nil {
		return err
	}
	if err := a.RegisterPoller(PollerControlStream, PriorityControlStream, a.control); err != nil {
		return err
	}
	// Registrations before the first cycle take effect immediately;
	// deferral only matters while a cycle is iterating.
	a.pollers.apply()

	a.clock.Refresh()
	now := a.clock.Nanos()
	a.lastStatsTimeNs = now
	if _, err := a.timers.ScheduleAt(now, a.events.heartbeat); err != nil {
		return err
	}
	if _, err := a.timers.ScheduleAt(now+a.statsPeriodNs, a.events.statsUpdate); err != nil {
		return err
	}
	if _, err := a.timers.ScheduleAt(now+a.gcStatsPeriodNs, a.events.gcStats); err != nil {
		return err
	}

	if err := a.machine.Start(hsm.Event{TimeNs: now}); err != nil {
		return err
	}
	a.started = true
	a.Dispatch(hsm.Event{ID: a.events.agentStarted, TimeNs: now})

	if err := a.applyManifest(); err != nil {
		return err
	}

	a.log.Info("agent started",
		"state", a.CurrentState(),
		"outputs", len(a.outputs),
		"inputs", len(a.inputSubs),
	)
	return nil
}

// applyDefaults loads the optional property-defaults file into the
// store.
func (a *Agent) applyDefaults() error {
	if a.cfg.DefaultsPath == "" {
		return nil
	}
	defaults, err := config.LoadDefaults(a.cfg.DefaultsPath)
	if err != nil {
		return err
	}
	for name, raw := range defaults {
		key := a.store.Lookup(name)
		if key == props.KeyNone {
			return &props.NotFoundError{Name: name}
		}
		var value wire.Value
		switch v := raw.(type) {
		case int:
			value = wire.Int64(int64(v))
		case int64:
			value = wire.Int64(v)
		case uint64:
			value = wire.Int64(int64(v))
		case float64:
			value = wire.Float64(v)
		case bool:
			value = wire.Bool(v)
		case string:
			if a.store.Format(key) == wire.FormatSymbol {
				value = wire.Symbol([]byte(v))
			} else {
				value = wire.String([]byte(v))
			}
		}
		if err := a.store.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// applyManifest registers the publications declared in the optional
// manifest file.
func (a *Agent) applyManifest() error {
	if a.cfg.ManifestPath == "" {
		return nil
	}
	manifest, err := config.LoadManifest(a.cfg.ManifestPath)
	if err != nil {
		return err
	}
	for _, p := range manifest.Publications {
		var strategy Strategy
		switch p.Strategy {
		case "on_update":
			strategy = OnUpdateStrategy()
		case "periodic":
			strategy = PeriodicStrategy(p.IntervalNs)
		case "rate_limited":
			strategy = RateLimitedStrategy(p.IntervalNs)
		case "scheduled":
			strategy = ScheduledStrategy(p.AtNs)
		}
		if _, err := a.RegisterPublication(p.Field, p.Stream, strategy); err != nil {
			return err
		}
	}
	return nil
}

// OnClose tears the agent down: timers cancelled, pollers cleared,
// communications and counters released. Idempotent.
func (a *Agent) OnClose() {
	if a.closed {
		return
	}
	a.closed = true

	if a.started && !a.terminated {
		a.Dispatch(hsm.Event{ID: a.events.agentOnClose, TimeNs: a.clock.Nanos()})
	}

	a.timers.CancelAll()
	a.pollers.clear()

	if a.statusPub != nil {
		_ = a.statusPub.Close()
	}
	if a.controlSub != nil {
		_ = a.controlSub.Close()
	}
	for _, publication := range a.outputs {
		_ = publication.Close()
	}
	for _, subscription := range a.inputSubs {
		_ = subscription.Close()
	}
	if a.ownsDriver {
		_ = a.driver.Close()
	}
	if a.ownsCounters {
		_ = a.counters.Close()
	}
	a.status = nil
	a.property = nil
	a.control = nil
	a.inputs = nil

	a.log.Info("agent closed")
}

// DoWork is one duty cycle: refresh the cached clock, run every
// active poller in priority order, apply deferred poller changes,
// bump the counters, and report the work done.
func (a *Agent) DoWork() int {
	a.clock.Refresh()
	work := 0
	for i := 0; i < a.pollers.length(); i++ {
		work += a.pollers.active[i].poller.Poll(a)
	}
	a.pollers.apply()
	a.dutyCycles.Increment()
	a.workDone.Add(int64(work))
	return work
}

// pollTimers is the built-in timers poller.
func (a *Agent) pollTimers() int {
	return a.timers.Poll(a.onTimer)
}

func (a *Agent) fireTimer(event symbol.ID, nowNs int64) {
	a.Dispatch(hsm.Event{ID: event, TimeNs: nowNs})
}

// Dispatch drives one event through the state machine. Handler errors
// never escape: they are converted to error events and re-dispatched,
// except the termination signal, which marks the agent terminated for
// the runner to observe.
func (a *Agent) Dispatch(ev hsm.Event) {
	err := a.machine.Dispatch(ev)
	if err == nil {
		return
	}
	if errors.Is(err, ErrAgentTermination) {
		a.terminated = true
		return
	}
	errEvent := hsm.Event{
		ID:            a.events.errorEvent,
		TimeNs:        a.clock.Nanos(),
		CorrelationID: ev.CorrelationID,
		Source:        ev.ID,
		Err:           err,
	}
	if err := a.machine.Dispatch(errEvent); err != nil {
		if errors.Is(err, ErrAgentTermination) {
			a.terminated = true
			return
		}
		a.log.Error("error event dispatch failed", "error", err)
	}
}

// RegisterPoller adds a poller under a unique name. Takes effect next
// cycle when called from inside a running cycle.
func (a *Agent) RegisterPoller(name string, priority int, poller Poller) error {
	return a.pollers.register(name, priority, poller)
}

// UnregisterPoller removes a poller by name. Idempotent.
func (a *Agent) UnregisterPoller(name string) {
	a.pollers.unregister(name)
}

// ClearPollers immediately wipes the poller list, built-ins included,
// and returns the number removed.
func (a *Agent) ClearPollers() int {
	return a.pollers.clear()
}

// HasPoller reports whether name is active or pending addition. An
// active poller already pending removal is reported absent.
func (a *Agent) HasPoller(name string) bool {
	return a.pollers.containsName(name)
}

// PollerCount returns the number of active pollers.
func (a *Agent) PollerCount() int { return a.pollers.length() }

// PollerNameAt returns the name of the i-th active poller, in
// execution order.
func (a *Agent) PollerNameAt(i int) string { return a.pollers.active[i].name }

// StatusSubscription attaches a reader to the agent's own status
// endpoint on the agent's driver, for in-process observers such as
// the status flight recorder in cadence-agent.
func (a *Agent) StatusSubscription() (transport.Subscription, error) {
	subscription, err := a.driver.AddSubscription(a.cfg.Status.URI, a.cfg.Status.StreamID)
	if err != nil {
		return nil, &CommunicationError{Message: err.Error()}
	}
	return subscription, nil
}

// Timers exposes the timer scheduler to handlers and custom pollers.
func (a *Agent) Timers() *TimerScheduler { return a.timers }

// Store exposes the property store.
func (a *Agent) Store() *props.Store { return a.store }

// Symbols exposes the agent's symbol table.
func (a *Agent) Symbols() *symbol.Table { return a.symbols }

// Clock exposes the cycle-cached clock.
func (a *Agent) Clock() *clock.Cached { return a.clock }

// Log exposes the agent logger.
func (a *Agent) Log() *slog.Logger { return a.log }

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// CurrentState returns the current leaf state name.
func (a *Agent) CurrentState() string {
	return a.machine.Name(a.machine.Current())
}

// Terminated reports whether the agent has entered its Exit state (or
// a handler raised the termination signal). The runner checks this
// between duty cycles.
func (a *Agent) Terminated() bool { return a.terminated }

// Counters returns the agent's three runtime counters in the order
// duty cycles, work done, properties published.
func (a *Agent) Counters() (dutyCycles, workDone, published *observe.Counter) {
	return a.dutyCycles, a.workDone, a.published
}
