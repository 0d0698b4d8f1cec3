// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/cadence-rtc/cadence/hsm"
	"github.com/cadence-rtc/cadence/lib/symbol"
	"github.com/cadence-rtc/cadence/props"
	"github.com/cadence-rtc/cadence/wire"
)

// Built-in event names.
const (
	EventAgentStarted    = "AgentStarted"
	EventAgentOnClose    = "AgentOnClose"
	EventExit            = "Exit"
	EventPlay            = "Play"
	EventPause           = "Pause"
	EventStop            = "Stop"
	EventReset           = "Reset"
	EventHeartbeat       = "Heartbeat"
	EventStatsUpdate     = "StatsUpdate"
	EventGCStats         = "GCStats"
	EventPublishProperty = "PublishProperty"
	EventState           = "State"
	EventProperties      = "Properties"
	EventError           = "Error"
	EventLateMessage     = "LateMessage"
	EventStateChange     = "StateChange"
)

type eventSet struct {
	agentStarted    symbol.ID
	agentOnClose    symbol.ID
	exit            symbol.ID
	play            symbol.ID
	pause           symbol.ID
	stop            symbol.ID
	reset           symbol.ID
	heartbeat       symbol.ID
	statsUpdate     symbol.ID
	gcStats         symbol.ID
	publishProperty symbol.ID
	state           symbol.ID
	properties      symbol.ID
	errorEvent      symbol.ID
	lateMessage     symbol.ID
	stateChange     symbol.ID
}

func internEvents(table *symbol.Table) eventSet {
	return eventSet{
		agentStarted:    table.Intern(EventAgentStarted),
		agentOnClose:    table.Intern(EventAgentOnClose),
		exit:            table.Intern(EventExit),
		play:            table.Intern(EventPlay),
		pause:           table.Intern(EventPause),
		stop:            table.Intern(EventStop),
		reset:           table.Intern(EventReset),
		heartbeat:       table.Intern(EventHeartbeat),
		statsUpdate:     table.Intern(EventStatsUpdate),
		gcStats:         table.Intern(EventGCStats),
		publishProperty: table.Intern(EventPublishProperty),
		state:           table.Intern(EventState),
		properties:      table.Intern(EventProperties),
		errorEvent:      table.Intern(EventError),
		lateMessage:     table.Intern(EventLateMessage),
		stateChange:     table.Intern(EventStateChange),
	}
}

// stateSet holds the fixed agent topology:
//
//	Root
//	├── Startup
//	└── Top
//	    ├── Ready
//	    │   ├── Stopped
//	    │   └── Processing
//	    │       ├── Paused
//	    │       └── Playing
//	    ├── Error
//	    └── Exit
type stateSet struct {
	root       hsm.StateID
	startup    hsm.StateID
	top        hsm.StateID
	ready      hsm.StateID
	stopped    hsm.StateID
	processing hsm.StateID
	paused     hsm.StateID
	playing    hsm.StateID
	errState   hsm.StateID
	exit       hsm.StateID
}

// buildMachine constructs the agent state machine and wires every
// handler. The machine's leaf-change observer publishes StateChange
// status events.
func (a *Agent) buildMachine() {
	m := hsm.New(10)
	s := &a.states
	s.root = m.AddState("Root", hsm.None)
	s.startup = m.AddState("Startup", s.root)
	s.top = m.AddState("Top", s.root)
	s.ready = m.AddState("Ready", s.top)
	s.stopped = m.AddState("Stopped", s.ready)
	s.processing = m.AddState("Processing", s.ready)
	s.paused = m.AddState("Paused", s.processing)
	s.playing = m.AddState("Playing", s.processing)
	s.errState = m.AddState("Error", s.top)
	s.exit = m.AddState("Exit", s.top)

	m.SetInitial(s.root, s.startup)
	m.SetInitial(s.top, s.ready)
	m.SetInitial(s.ready, s.stopped)
	m.SetInitial(s.processing, s.paused)

	// State name bytes for zero-alloc status payloads.
	a.stateNames = make([][]byte, int(s.exit)+1)
	for id := s.root; id <= s.exit; id++ {
		a.stateNames[id] = []byte(m.Name(id))
	}

	m.OnEvent(s.startup, a.events.agentStarted, func(hsm.Event) (hsm.StateID, error) {
		return s.top, nil
	})

	m.OnEvent(s.stopped, a.events.play, transitionTo(s.playing))
	m.OnEvent(s.stopped, a.events.pause, transitionTo(s.paused))
	m.OnEvent(s.paused, a.events.play, transitionTo(s.playing))
	m.OnEvent(s.playing, a.events.pause, transitionTo(s.paused))
	m.OnEvent(s.processing, a.events.stop, transitionTo(s.stopped))
	m.OnEvent(s.ready, a.events.reset, transitionTo(s.ready))

	m.OnEvent(s.playing, a.events.publishProperty, a.onPublishProperty)

	m.OnEvent(s.top, a.events.heartbeat, a.onHeartbeat)
	m.OnEvent(s.top, a.events.statsUpdate, a.onStatsUpdate)
	m.OnEvent(s.top, a.events.gcStats, a.onGCStats)
	m.OnEvent(s.top, a.events.state, a.onStateRequest)
	m.OnEvent(s.top, a.events.properties, a.onPropertiesRequest)
	m.OnEvent(s.top, a.events.errorEvent, a.onError)
	m.OnEvent(s.top, a.events.lateMessage, a.onLateMessage)
	m.OnEvent(s.top, a.events.agentOnClose, transitionTo(s.exit))
	m.OnEvent(s.top, a.events.exit, transitionTo(s.exit))

	m.OnEntry(s.exit, func(hsm.Event) error {
		a.terminated = true
		return nil
	})

	m.SetFallback(a.onUnhandled)
	m.SetChanged(func(_, to hsm.StateID) {
		a.status.publish(
			a.symbols.NameBytes(a.events.stateChange),
			wire.Symbol(a.stateNames[to]),
			a.ids.NextID(),
			a.clock.Nanos(),
		)
	})

	a.machine = m
}

func transitionTo(target hsm.StateID) hsm.Handler {
	return func(hsm.Event) (hsm.StateID, error) {
		return target, nil
	}
}

// onPublishProperty serves the property poller's publish events while
// the agent is playing. In any other state the event falls through
// unhandled and the value is simply not published this cycle.
func (a *Agent) onPublishProperty(ev hsm.Event) (hsm.StateID, error) {
	cfg := ev.Payload.(*PublicationConfig)
	value, err := a.store.Get(cfg.Field)
	if err != nil {
		return hsm.Remain, &PublicationError{Message: err.Error(), Field: a.store.Name(cfg.Field)}
	}
	if !a.property.publish(cfg, a.store, value, a.ids.NextID(), ev.TimeNs) {
		// Dropped under back-pressure; the strategy re-evaluates next
		// cycle. The error value exists only when someone is watching
		// at debug level, keeping the drop path allocation-free.
		if a.log.Enabled(context.Background(), slog.LevelDebug) {
			a.log.Debug("property publish dropped", "error", &BackPressureError{
				Stream:      cfg.publication.Channel(),
				MaxAttempts: 1,
			})
		}
	}
	return hsm.Remain, nil
}

// onHeartbeat publishes the current leaf and re-arms the heartbeat
// timer. Recurrence lives here, not in the scheduler: timers are
// strictly one-shot.
func (a *Agent) onHeartbeat(ev hsm.Event) (hsm.StateID, error) {
	a.status.publish(
		a.symbols.NameBytes(a.events.heartbeat),
		wire.Symbol(a.stateNames[a.machine.Current()]),
		a.ids.NextID(),
		ev.TimeNs,
	)
	if _, err := a.timers.ScheduleAt(ev.TimeNs+a.heartbeatPeriodNs, a.events.heartbeat); err != nil {
		return hsm.Remain, err
	}
	return hsm.Remain, nil
}

// onStatsUpdate derives message and work rates since the previous
// update and publishes them as a (msgs/s, work/s) tuple.
func (a *Agent) onStatsUpdate(ev hsm.Event) (hsm.StateID, error) {
	now := ev.TimeNs
	elapsed := now - a.lastStatsTimeNs
	if elapsed > 0 {
		workCount := a.workDone.Get()
		scale := 1e9 / float64(elapsed)
		a.tupleScratch[0] = wire.Float64(float64(a.messageCount-a.lastMessageCount) * scale)
		a.tupleScratch[1] = wire.Float64(float64(workCount-a.lastWorkCount) * scale)
		a.status.publish(
			a.symbols.NameBytes(a.events.statsUpdate),
			wire.TupleOf(a.tupleScratch[:2]),
			a.ids.NextID(),
			now,
		)
		a.lastStatsTimeNs = now
		a.lastMessageCount = a.messageCount
		a.lastWorkCount = workCount
	}
	if _, err := a.timers.ScheduleAt(now+a.statsPeriodNs, a.events.statsUpdate); err != nil {
		return hsm.Remain, err
	}
	return hsm.Remain, nil
}

// onGCStats publishes heap-in-use, cumulative allocation, and GC
// count. runtime.ReadMemStats stops the world briefly but does not
// allocate, so the zero-allocation cycle guarantee holds through
// this handler.
func (a *Agent) onGCStats(ev hsm.Event) (hsm.StateID, error) {
	runtime.ReadMemStats(&a.memStats)
	a.tupleScratch[0] = wire.Int64(int64(a.memStats.HeapAlloc))
	a.tupleScratch[1] = wire.Int64(int64(a.memStats.TotalAlloc))
	a.tupleScratch[2] = wire.Int64(int64(a.memStats.NumGC))
	a.status.publish(
		a.symbols.NameBytes(a.events.gcStats),
		wire.TupleOf(a.tupleScratch[:3]),
		a.ids.NextID(),
		ev.TimeNs,
	)
	if _, err := a.timers.ScheduleAt(ev.TimeNs+a.gcStatsPeriodNs, a.events.gcStats); err != nil {
		return hsm.Remain, err
	}
	return hsm.Remain, nil
}

// onStateRequest answers a State control message with the current
// leaf.
func (a *Agent) onStateRequest(ev hsm.Event) (hsm.StateID, error) {
	a.status.publish(
		a.symbols.NameBytes(a.events.state),
		wire.Symbol(a.stateNames[a.machine.Current()]),
		ev.CorrelationID,
		ev.TimeNs,
	)
	return hsm.Remain, nil
}

// onPropertiesRequest answers a Properties control message with one
// status event per readable property.
func (a *Agent) onPropertiesRequest(ev hsm.Event) (hsm.StateID, error) {
	a.store.ForEachReadable(func(key props.Key) {
		value, err := a.store.Get(key)
		if err != nil {
			return
		}
		a.status.publish(a.store.NameBytes(key), value, ev.CorrelationID, ev.TimeNs)
	})
	return hsm.Remain, nil
}

// onError publishes a handler failure as a status event and logs it.
// The error already passed through the dispatcher's conversion, so
// returning Remain here closes the loop.
func (a *Agent) onError(ev hsm.Event) (hsm.StateID, error) {
	a.log.Error("handler error",
		"source", a.symbols.Name(ev.Source),
		"state", a.machine.Name(a.machine.Current()),
		"error", ev.Err,
	)
	a.status.publish(
		a.symbols.NameBytes(a.events.errorEvent),
		wire.String([]byte(ev.Err.Error())),
		ev.CorrelationID,
		ev.TimeNs,
	)
	return hsm.Remain, nil
}

// onLateMessage acknowledges an inbound message that exceeded the
// late threshold with an empty response.
func (a *Agent) onLateMessage(ev hsm.Event) (hsm.StateID, error) {
	a.status.publish(
		a.symbols.NameBytes(a.events.lateMessage),
		wire.Nothing(),
		ev.CorrelationID,
		ev.TimeNs,
	)
	return hsm.Remain, nil
}

// onUnhandled is the root fallback: an inbound message whose key
// names a property is a read (no value) or a write (value present).
// Writes echo the stored value back on the status stream.
func (a *Agent) onUnhandled(ev hsm.Event) (hsm.StateID, bool, error) {
	if ev.Msg == nil {
		return hsm.Remain, false, nil
	}
	key := a.store.LookupBytes(ev.Msg.Key)
	if key == props.KeyNone {
		return hsm.Remain, false, nil
	}

	if ev.Msg.Value.Format == wire.FormatNothing {
		value, err := a.store.Get(key)
		if err != nil {
			return hsm.Remain, true, err
		}
		a.status.publish(a.store.NameBytes(key), value, ev.CorrelationID, ev.TimeNs)
		return hsm.Remain, true, nil
	}

	if err := a.store.Set(key, ev.Msg.Value); err != nil {
		return hsm.Remain, true, err
	}
	if a.store.Access(key)&props.Readable != 0 {
		value, err := a.store.Get(key)
		if err != nil {
			return hsm.Remain, true, err
		}
		a.status.publish(a.store.NameBytes(key), value, ev.CorrelationID, ev.TimeNs)
	}
	return hsm.Remain, true, nil
}
