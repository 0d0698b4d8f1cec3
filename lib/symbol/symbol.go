// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package symbol

import "fmt"

// ID is an interned symbol. The zero value None is never assigned to
// a real symbol.
type ID int32

// None is the absent symbol. Table lookups for unknown names return
// None.
const None ID = 0

// MaxLength is the longest symbol name the wire format can carry
// (the name length is encoded in a single byte).
const MaxLength = 255

// Table interns symbol names to IDs. IDs are assigned sequentially
// starting at 1 and are stable for the lifetime of the table.
type Table struct {
	names []string
	bytes [][]byte
	ids   map[string]ID
}

// NewTable returns an empty table with capacity reserved for n
// symbols.
func NewTable(n int) *Table {
	return &Table{
		names: make([]string, 1, n+1), // index 0 reserved for None
		bytes: make([][]byte, 1, n+1),
		ids:   make(map[string]ID, n),
	}
}

// Intern returns the ID for name, assigning a new one if the name has
// not been seen before. Panics if name is empty or exceeds MaxLength;
// symbols are registered by construction-time code where a bad name
// is a programming error.
func (t *Table) Intern(name string) ID {
	if name == "" {
		panic("symbol: empty name")
	}
	if len(name) > MaxLength {
		panic(fmt.Sprintf("symbol: name %q exceeds %d bytes", name[:32]+"...", MaxLength))
	}
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := ID(len(t.names))
	t.names = append(t.names, name)
	t.bytes = append(t.bytes, []byte(name))
	t.ids[name] = id
	return id
}

// Lookup returns the ID for name, or None if the name has never been
// interned. Unlike Intern, Lookup never mutates the table and is safe
// on the hot path (a map read does not allocate).
func (t *Table) Lookup(name string) ID {
	return t.ids[name]
}

// LookupBytes is Lookup for a byte slice key. The Go compiler
// recognizes the map[string] lookup with a converted byte slice and
// does not allocate.
func (t *Table) LookupBytes(name []byte) ID {
	return t.ids[string(name)]
}

// Name returns the string form of id, or "<unknown>" for IDs not
// assigned by this table.
func (t *Table) Name(id ID) string {
	if id <= None || int(id) >= len(t.names) {
		return "<unknown>"
	}
	return t.names[id]
}

// NameBytes returns the name of id as a byte slice interned alongside
// the string form. Publishers use it to encode symbol names without a
// per-publish string conversion. Callers must not mutate the slice.
func (t *Table) NameBytes(id ID) []byte {
	if id <= None || int(id) >= len(t.bytes) {
		return nil
	}
	return t.bytes[id]
}

// Len returns the number of interned symbols.
func (t *Table) Len() int { return len(t.names) - 1 }
