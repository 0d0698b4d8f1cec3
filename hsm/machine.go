// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package hsm

import (
	"fmt"

	"github.com/cadence-rtc/cadence/lib/symbol"
	"github.com/cadence-rtc/cadence/wire"
)

// StateID indexes a state within one machine.
type StateID int32

const (
	// None is the absent state (parent of the root).
	None StateID = -1
	// Remain is returned by handlers that consume an event without
	// transitioning.
	Remain StateID = -2
)

// Event is one dispatched occurrence. Only the fields relevant to a
// given event kind are set; the rest are zero.
type Event struct {
	// ID is the interned event name.
	ID symbol.ID
	// TimeNs is the cycle timestamp the event was dispatched at.
	TimeNs int64
	// CorrelationID matches a response to the inbound request that
	// provoked it, when there is one.
	CorrelationID int64
	// Source is the event that was being handled when Err occurred.
	// Set on error events only.
	Source symbol.ID
	// Err carries the failure for error events.
	Err error
	// Msg is the decoded inbound message for events raised by stream
	// adapters. Valid only for the duration of the dispatch.
	Msg *wire.Message
	// Payload carries event-specific context (the agent passes its
	// publication config on publish-property events). Always a
	// pointer to preallocated state; boxing it does not allocate.
	Payload any
}

// Action runs on state entry, exit, or initial descent.
type Action func(ev Event) error

// Handler reacts to an event in a state. It returns the transition
// target, or Remain to consume the event in place.
type Handler func(ev Event) (StateID, error)

// Fallback handles events no state claimed. It reports whether the
// event was consumed.
type Fallback func(ev Event) (StateID, bool, error)

// maxDepth bounds the state tree height; transition scratch buffers
// are sized by it.
const maxDepth = 16

// Machine is a fixed-topology hierarchical state machine. Build it
// with AddState/SetInitial/On* calls, then Start it. Not safe for
// concurrent use, and Dispatch is not reentrant: actions and handlers
// must not call Dispatch.
type Machine struct {
	names    []string
	parent   []StateID
	depth    []int32
	initial  []StateID
	entry    []Action
	exit     []Action
	onInit   []Action
	handlers []map[symbol.ID]Handler

	fallback Fallback
	changed  func(from, to StateID)

	current   StateID
	started   bool
	entryPath [maxDepth]StateID
}

// New returns an empty machine with room for capacity states.
func New(capacity int) *Machine {
	return &Machine{
		names:    make([]string, 0, capacity),
		parent:   make([]StateID, 0, capacity),
		depth:    make([]int32, 0, capacity),
		initial:  make([]StateID, 0, capacity),
		entry:    make([]Action, 0, capacity),
		exit:     make([]Action, 0, capacity),
		onInit:   make([]Action, 0, capacity),
		handlers: make([]map[symbol.ID]Handler, 0, capacity),
		current:  None,
	}
}

// AddState appends a state under parent. The first state added must
// be the root (parent None); there is exactly one root.
func (m *Machine) AddState(name string, parent StateID) StateID {
	if parent == None && len(m.names) > 0 {
		panic("hsm: second root state " + name)
	}
	depth := int32(0)
	if parent != None {
		depth = m.depth[parent] + 1
		if int(depth) >= maxDepth {
			panic(fmt.Sprintf("hsm: state %s exceeds max depth %d", name, maxDepth))
		}
	}
	id := StateID(len(m.names))
	m.names = append(m.names, name)
	m.parent = append(m.parent, parent)
	m.depth = append(m.depth, depth)
	m.initial = append(m.initial, None)
	m.entry = append(m.entry, nil)
	m.exit = append(m.exit, nil)
	m.onInit = append(m.onInit, nil)
	m.handlers = append(m.handlers, nil)
	return id
}

// SetInitial declares child as the initial substate of parent.
func (m *Machine) SetInitial(parent, child StateID) {
	if m.parent[child] != parent {
		panic(fmt.Sprintf("hsm: %s is not a child of %s", m.names[child], m.names[parent]))
	}
	m.initial[parent] = child
}

// OnEntry sets the entry action of state.
func (m *Machine) OnEntry(state StateID, action Action) { m.entry[state] = action }

// OnExit sets the exit action of state.
func (m *Machine) OnExit(state StateID, action Action) { m.exit[state] = action }

// OnInitial sets the action fired when an initial-state chain
// descends through state.
func (m *Machine) OnInitial(state StateID, action Action) { m.onInit[state] = action }

// OnEvent registers a handler for event in state.
func (m *Machine) OnEvent(state StateID, event symbol.ID, handler Handler) {
	if m.handlers[state] == nil {
		m.handlers[state] = make(map[symbol.ID]Handler, 8)
	}
	m.handlers[state][event] = handler
}

// SetFallback installs the root catch-all handler.
func (m *Machine) SetFallback(fallback Fallback) { m.fallback = fallback }

// SetChanged installs the leaf-change observer, invoked once after
// any dispatch that moved the machine to a different leaf.
func (m *Machine) SetChanged(observer func(from, to StateID)) { m.changed = observer }

// Name returns the state's name, or "<none>".
func (m *Machine) Name(state StateID) string {
	if state < 0 || int(state) >= len(m.names) {
		return "<none>"
	}
	return m.names[state]
}

// Current returns the current leaf.
func (m *Machine) Current() StateID { return m.current }

// IsIn reports whether state is the current leaf or one of its
// ancestors.
func (m *Machine) IsIn(state StateID) bool {
	for s := m.current; s != None; s = m.parent[s] {
		if s == state {
			return true
		}
	}
	return false
}

// Start descends the initial-state chain from the root and makes the
// resulting leaf current, firing initial and entry actions on the way
// down. The root's own entry action does not fire; the root is the
// implicit apex, never entered or exited.
func (m *Machine) Start(ev Event) error {
	if len(m.names) == 0 {
		return fmt.Errorf("hsm: no states")
	}
	if m.started {
		return fmt.Errorf("hsm: already started")
	}
	m.started = true
	m.current = 0
	return m.descendInitial(ev)
}

// Dispatch routes ev to the deepest handler on the leaf-to-root walk,
// then to the fallback. After a transition the leaf-change observer
// fires. Handler and action errors abort the dispatch and surface to
// the caller. A handler error leaves the leaf unchanged; an action
// error mid-transition leaves the machine on the last state it
// entered, which may be a composite.
func (m *Machine) Dispatch(ev Event) error {
	if !m.started {
		return fmt.Errorf("hsm: dispatch before start")
	}
	previous := m.current

	target := Remain
	consumed := false
	for state := m.current; state != None; state = m.parent[state] {
		handler := m.handlers[state][ev.ID]
		if handler == nil {
			continue
		}
		t, err := handler(ev)
		if err != nil {
			return err
		}
		target = t
		consumed = true
		break
	}
	if !consumed && m.fallback != nil {
		t, ok, err := m.fallback(ev)
		if err != nil {
			return err
		}
		if ok {
			target = t
		}
	}

	if target != Remain {
		if err := m.transition(target, ev); err != nil {
			return err
		}
	}
	if m.current != previous && m.changed != nil {
		m.changed(previous, m.current)
	}
	return nil
}

// transition moves the machine from the current leaf to target.
//
// The exit path is the states strictly between the leaf and the least
// common ancestor of leaf and target: the leaf itself does not re-run
// its exit action on a transition to a sibling subtree. A transition
// targeting the current leaf exits and re-enters it.
func (m *Machine) transition(target StateID, ev Event) error {
	if target < 0 || int(target) >= len(m.names) {
		return fmt.Errorf("hsm: transition to invalid state %d", target)
	}
	leaf := m.current

	if target == leaf {
		if err := m.runExit(leaf, ev); err != nil {
			return err
		}
		if err := m.runEntry(leaf, ev); err != nil {
			return err
		}
		return m.descendInitial(ev)
	}

	lca := m.lowestCommonAncestor(leaf, target)
	for state := m.parent[leaf]; state != lca && state != None; state = m.parent[state] {
		if err := m.runExit(state, ev); err != nil {
			return err
		}
	}

	// Collect the entry path target..LCA (exclusive), then enter
	// outermost first.
	path := m.entryPath[:0]
	for state := target; state != lca && state != None; state = m.parent[state] {
		path = append(path, state)
	}
	for i := len(path) - 1; i >= 0; i-- {
		if err := m.runEntry(path[i], ev); err != nil {
			return err
		}
		m.current = path[i]
	}
	m.current = target
	return m.descendInitial(ev)
}

// descendInitial follows initial-state declarations from the current
// state down to a leaf, firing each composite's initial action and
// each entered child's entry action.
func (m *Machine) descendInitial(ev Event) error {
	for m.initial[m.current] != None {
		if action := m.onInit[m.current]; action != nil {
			if err := action(ev); err != nil {
				return err
			}
		}
		child := m.initial[m.current]
		if err := m.runEntry(child, ev); err != nil {
			return err
		}
		m.current = child
	}
	return nil
}

func (m *Machine) runEntry(state StateID, ev Event) error {
	if action := m.entry[state]; action != nil {
		return action(ev)
	}
	return nil
}

func (m *Machine) runExit(state StateID, ev Event) error {
	if action := m.exit[state]; action != nil {
		return action(ev)
	}
	return nil
}

func (m *Machine) lowestCommonAncestor(a, b StateID) StateID {
	for m.depth[a] > m.depth[b] {
		a = m.parent[a]
	}
	for m.depth[b] > m.depth[a] {
		b = m.parent[b]
	}
	for a != b {
		a = m.parent[a]
		b = m.parent[b]
	}
	return a
}
