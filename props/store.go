// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package props

import (
	"fmt"

	"github.com/cadence-rtc/cadence/lib/clock"
	"github.com/cadence-rtc/cadence/lib/symbol"
	"github.com/cadence-rtc/cadence/wire"
)

// Key indexes a property slot. KeyNone marks "no such property".
type Key int32

// KeyNone is the invalid key.
const KeyNone Key = -1

// Access is a property's access mode bit set.
type Access uint8

const (
	// Readable properties answer reads and are publishable.
	Readable Access = 1 << 0
	// Writable properties accept inbound writes.
	Writable Access = 1 << 1
	// ReadWrite is both.
	ReadWrite = Readable | Writable
)

// String returns the mode for diagnostics.
func (a Access) String() string {
	switch a {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case ReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("access(%d)", uint8(a))
	}
}

// Setter validates a value before it is stored; the value it was
// given is stored unchanged. Returning an error rejects the write; the
// slot is unchanged.
type Setter func(store *Store, key Key, value wire.Value) error

// Getter computes a value on read instead of returning the stored
// one. Getters must not allocate.
type Getter func(store *Store, key Key) wire.Value

// Spec declares one property slot.
type Spec struct {
	// Name is the symbolic key.
	Name string
	// Format is the declared value format.
	Format wire.Format
	// Access is the mode bit set; zero means ReadWrite.
	Access Access
	// Initial is the starting value; its format must match Format
	// unless it is Nothing.
	Initial wire.Value
	// Capacity reserves payload storage for String, Symbol, Array,
	// and Tensor properties. Ignored for scalar formats. Defaults to
	// DefaultCapacity when zero.
	Capacity int
	// Set, when non-nil, validates writes.
	Set Setter
	// Get, when non-nil, computes reads.
	Get Getter
}

// DefaultCapacity is the payload reservation for variable-size
// properties that do not declare one.
const DefaultCapacity = 256

type slot struct {
	spec         Spec
	sym          symbol.ID
	value        wire.Value
	storage      []byte
	lastUpdateNs int64
}

// Store is the agent's property table.
type Store struct {
	source  clock.Clock
	symbols *symbol.Table
	slots   []slot
	byName  map[symbol.ID]Key
}

// NewStore builds a store over the given specs. Names are interned
// into symbols; duplicate names are a construction error.
func NewStore(source clock.Clock, symbols *symbol.Table, specs []Spec) (*Store, error) {
	store := &Store{
		source:  source,
		symbols: symbols,
		slots:   make([]slot, 0, len(specs)),
		byName:  make(map[symbol.ID]Key, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("props: spec with empty name")
		}
		if spec.Access == 0 {
			spec.Access = ReadWrite
		}
		sym := symbols.Intern(spec.Name)
		if _, exists := store.byName[sym]; exists {
			return nil, fmt.Errorf("props: duplicate property %q", spec.Name)
		}

		s := slot{spec: spec, sym: sym, value: wire.Value{Format: spec.Format}}
		if needsStorage(spec.Format) {
			capacity := spec.Capacity
			if capacity <= 0 {
				capacity = DefaultCapacity
			}
			s.storage = make([]byte, capacity)
		}
		key := Key(len(store.slots))
		store.slots = append(store.slots, s)
		store.byName[sym] = key

		if spec.Initial.Format != wire.FormatNothing {
			// Initial values bypass the access check: a read-only
			// property still needs its starting value.
			if err := store.put(key, spec.Initial, false); err != nil {
				return nil, fmt.Errorf("props: initial value for %q: %w", spec.Name, err)
			}
		}
	}
	return store, nil
}

func needsStorage(f wire.Format) bool {
	switch f {
	case wire.FormatSymbol, wire.FormatString, wire.FormatArray, wire.FormatTensor:
		return true
	default:
		return false
	}
}

// Len returns the number of properties.
func (s *Store) Len() int { return len(s.slots) }

// Lookup resolves a name to its key, or KeyNone.
func (s *Store) Lookup(name string) Key {
	return s.LookupSymbol(s.symbols.Lookup(name))
}

// LookupBytes resolves a name given as bytes (an inbound message key)
// to its property key, or KeyNone. Does not allocate.
func (s *Store) LookupBytes(name []byte) Key {
	return s.LookupSymbol(s.symbols.LookupBytes(name))
}

// LookupSymbol resolves an interned symbol to its key, or KeyNone.
func (s *Store) LookupSymbol(sym symbol.ID) Key {
	if key, ok := s.byName[sym]; ok {
		return key
	}
	return KeyNone
}

// Name returns the symbolic name of key.
func (s *Store) Name(key Key) string {
	return s.symbols.Name(s.slots[key].sym)
}

// NameBytes returns the interned name bytes of key, for message
// encoding without a per-publish string conversion.
func (s *Store) NameBytes(key Key) []byte {
	return s.symbols.NameBytes(s.slots[key].sym)
}

// Symbol returns the interned symbol of key.
func (s *Store) Symbol(key Key) symbol.ID { return s.slots[key].sym }

// Format returns the declared format of key.
func (s *Store) Format(key Key) wire.Format { return s.slots[key].spec.Format }

// Access returns the access mode of key.
func (s *Store) Access(key Key) Access { return s.slots[key].spec.Access }

// LastUpdateNs returns the timestamp of the most recent successful
// write to key, or zero if the property has never been written.
func (s *Store) LastUpdateNs(key Key) int64 {
	return s.slots[key].lastUpdateNs
}

// Get returns the current value of key. Reads never touch the
// last-update timestamp.
func (s *Store) Get(key Key) (wire.Value, error) {
	if key < 0 || int(key) >= len(s.slots) {
		return wire.Nothing(), &NotFoundError{Name: fmt.Sprintf("key(%d)", key)}
	}
	sl := &s.slots[key]
	if sl.spec.Access&Readable == 0 {
		return wire.Nothing(), &AccessError{Name: s.Name(key), Mode: sl.spec.Access}
	}
	if sl.spec.Get != nil {
		return sl.spec.Get(s, key), nil
	}
	return sl.value, nil
}

// Set stores value into key. Variable-size payloads are copied into
// the slot's preallocated storage; the caller's buffer is not
// retained. On success the last-update timestamp advances
// monotonically (it never moves backwards even if the injected clock
// stalls).
func (s *Store) Set(key Key, value wire.Value) error {
	return s.put(key, value, true)
}

func (s *Store) put(key Key, value wire.Value, checkAccess bool) error {
	if key < 0 || int(key) >= len(s.slots) {
		return &NotFoundError{Name: fmt.Sprintf("key(%d)", key)}
	}
	sl := &s.slots[key]
	name := s.Name(key)
	if checkAccess && sl.spec.Access&Writable == 0 {
		return &AccessError{Name: name, Mode: sl.spec.Access}
	}
	if value.Format != sl.spec.Format {
		return &TypeError{
			Name:     name,
			Expected: sl.spec.Format.String(),
			Actual:   value.Format.String(),
		}
	}
	if sl.spec.Set != nil {
		if err := sl.spec.Set(s, key, value); err != nil {
			return err
		}
	}

	if needsStorage(value.Format) {
		if len(value.Bytes) > len(sl.storage) {
			return &ValidationError{
				Name:    name,
				Message: fmt.Sprintf("payload %d bytes exceeds capacity %d", len(value.Bytes), len(sl.storage)),
			}
		}
		n := copy(sl.storage, value.Bytes)
		stored := value
		stored.Bytes = sl.storage[:n]
		sl.value = stored
	} else {
		sl.value = value
	}

	ts := s.source.Nanos()
	if ts <= sl.lastUpdateNs {
		ts = sl.lastUpdateNs
	}
	sl.lastUpdateNs = ts
	return nil
}

// SetInt64 stores an integer scalar.
func (s *Store) SetInt64(key Key, v int64) error { return s.Set(key, wire.Int64(v)) }

// SetFloat64 stores a float scalar.
func (s *Store) SetFloat64(key Key, v float64) error { return s.Set(key, wire.Float64(v)) }

// SetBool stores a boolean.
func (s *Store) SetBool(key Key, v bool) error { return s.Set(key, wire.Bool(v)) }

// SetString stores string content.
func (s *Store) SetString(key Key, content []byte) error {
	return s.Set(key, wire.String(content))
}

// SetSymbol stores a symbol by name bytes.
func (s *Store) SetSymbol(key Key, name []byte) error {
	return s.Set(key, wire.Symbol(name))
}

// ForEachReadable visits every readable key in declaration order.
func (s *Store) ForEachReadable(visit func(key Key)) {
	for i := range s.slots {
		if s.slots[i].spec.Access&Readable != 0 {
			visit(Key(i))
		}
	}
}
