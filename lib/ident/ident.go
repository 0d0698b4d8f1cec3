// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"fmt"

	"github.com/cadence-rtc/cadence/lib/clock"
)

const (
	nodeBits     = 10
	sequenceBits = 12

	// MaxNode is the largest node ID a generator accepts; callers
	// with wider identities mask down to it.
	MaxNode = (1 << nodeBits) - 1

	maxSequence = (1 << sequenceBits) - 1

	// customEpochMillis rebases the 41-bit millisecond field to
	// 2024-01-01T00:00:00Z, giving the ID space ~69 years of headroom.
	// Protocol constant; changing it breaks cross-node ordering.
	customEpochMillis = 1704067200000
)

// Generator produces correlation IDs for one node.
type Generator struct {
	source     clock.Clock
	node       int64
	lastMillis int64
	sequence   int64
}

// NewGenerator returns a Generator for the given node ID. Node IDs
// wider than 10 bits are rejected; callers deriving the node from a
// 64-bit block identity mask it down with MaxNode first.
func NewGenerator(source clock.Clock, node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("ident: node ID %d out of range [0, %d]", node, MaxNode)
	}
	return &Generator{source: source, node: node}, nil
}

// NextID returns the next correlation ID. IDs are strictly increasing
// for a single generator. When the per-millisecond sequence is
// exhausted the generator spins until the clock advances; at 4096 IDs
// per millisecond this only happens under synthetic load.
func (g *Generator) NextID() int64 {
	millis := g.source.Nanos() / 1_000_000
	if millis < g.lastMillis {
		// Monotonic source guarantees this cannot regress; defend
		// against a misbehaving injected clock by pinning.
		millis = g.lastMillis
	}
	if millis == g.lastMillis {
		g.sequence++
		if g.sequence > maxSequence {
			for millis <= g.lastMillis {
				millis = g.source.Nanos() / 1_000_000
			}
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastMillis = millis

	return (millis-customEpochMillis)<<(nodeBits+sequenceBits) |
		g.node<<sequenceBits |
		g.sequence
}

// Node extracts the node ID embedded in a correlation ID.
func Node(id int64) int64 {
	return (id >> sequenceBits) & MaxNode
}

// Millis extracts the epoch-millisecond timestamp embedded in a
// correlation ID.
func Millis(id int64) int64 {
	return (id >> (nodeBits + sequenceBits)) + customEpochMillis
}
