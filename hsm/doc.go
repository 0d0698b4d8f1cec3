// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package hsm implements the hierarchical state machine core that
// routes agent events.
//
// States form a tree built once at construction; the machine then
// resides in exactly one leaf. Events are dispatched to the deepest
// handler found on the walk from the current leaf to the root, with
// an optional root fallback for events no state claims (the agent
// uses it for property read/write messages). Handlers either consume
// the event in place or request a transition.
//
// A transition computes the least common ancestor of the current leaf
// and the target, fires exit actions on the states strictly between
// the leaf and the LCA, entry actions from below the LCA down to the
// target, and then follows initial-state chains until a leaf is
// reached. A transition targeting the current leaf itself exits and
// re-enters it.
//
// Everything is indexed by small integers: states by StateID,
// events by interned symbol. Dispatch performs no allocation.
package hsm
