// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// File layout constants. All integers little-endian.
const (
	fileMagic   = 0x43414443 // "CADC"
	fileVersion = 1

	headerLength = 64

	// Metadata record layout:
	//   state    u32
	//   typeID   u32
	//   keyLen   u32
	//   key      [MaxKeyLength]byte
	//   labelLen u32
	//   label    [MaxLabelLength]byte
	// padded to metadataRecordLength.
	metadataRecordLength = 512

	// MaxKeyLength bounds a counter's opaque key.
	MaxKeyLength = 112
	// MaxLabelLength bounds a counter's display label.
	MaxLabelLength = 380

	// valueSlotLength pads each value to its own cache line so
	// unrelated counters do not false-share.
	valueSlotLength = 64

	stateUnused    = 0
	stateAllocated = 1
)

// DefaultMaxCounters sizes a counters file: a handful of runtime
// counters per agent times a fleet of agents on one host.
const DefaultMaxCounters = 1024

// DefaultPath returns the conventional counters file location:
// /dev/shm when available (so reads are never a disk access), the OS
// temp directory otherwise.
func DefaultPath() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm/cadence/counters.dat"
	}
	return filepath.Join(os.TempDir(), "cadence", "counters.dat")
}

// CountersFile is the writable mapping owned by an agent process.
// Allocation is mutex-guarded (several agents in one process may
// share the file); counter value updates are lock-free atomics.
type CountersFile struct {
	mu          sync.Mutex
	file        *os.File
	mapping     []byte
	maxCounters int
	nextID      int32
}

// CreateCounters creates (or truncates) a counters file at path sized
// for maxCounters and maps it writable.
func CreateCounters(path string, maxCounters int) (*CountersFile, error) {
	if maxCounters <= 0 {
		maxCounters = DefaultMaxCounters
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("observe: creating counters directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("observe: opening counters file: %w", err)
	}
	size := fileLength(maxCounters)
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf("observe: sizing counters file: %w", err)
	}
	mapping, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("observe: mapping counters file: %w", err)
	}

	binary.LittleEndian.PutUint32(mapping[0:], fileMagic)
	binary.LittleEndian.PutUint32(mapping[4:], fileVersion)
	binary.LittleEndian.PutUint32(mapping[8:], uint32(maxCounters))

	return &CountersFile{
		file:        file,
		mapping:     mapping,
		maxCounters: maxCounters,
	}, nil
}

func fileLength(maxCounters int) int {
	return headerLength + maxCounters*(metadataRecordLength+valueSlotLength)
}

func metadataOffset(id int32) int {
	return headerLength + int(id)*metadataRecordLength
}

func valueOffset(maxCounters int, id int32) int {
	return headerLength + maxCounters*metadataRecordLength + int(id)*valueSlotLength
}

// Allocate assigns the next free counter slot. The key is opaque to
// the file format; agent counters use AgentKey. The label is what
// readers display.
func (f *CountersFile) Allocate(typeID uint32, key []byte, label string) (*Counter, error) {
	if len(key) > MaxKeyLength {
		return nil, fmt.Errorf("observe: counter key %d bytes exceeds %d", len(key), MaxKeyLength)
	}
	if len(label) > MaxLabelLength {
		label = label[:MaxLabelLength]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapping == nil {
		return nil, fmt.Errorf("observe: counters file closed")
	}
	if int(f.nextID) >= f.maxCounters {
		return nil, fmt.Errorf("observe: counters file full (%d slots)", f.maxCounters)
	}
	id := f.nextID
	f.nextID++

	meta := f.mapping[metadataOffset(id):]
	binary.LittleEndian.PutUint32(meta[4:], typeID)
	binary.LittleEndian.PutUint32(meta[8:], uint32(len(key)))
	copy(meta[12:12+MaxKeyLength], key)
	binary.LittleEndian.PutUint32(meta[12+MaxKeyLength:], uint32(len(label)))
	copy(meta[16+MaxKeyLength:], label)
	// State is written last so a concurrent reader never sees a
	// half-written record marked allocated.
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&meta[0])), stateAllocated)

	address := (*int64)(unsafe.Pointer(&f.mapping[valueOffset(f.maxCounters, id)]))
	atomic.StoreInt64(address, 0)
	return &Counter{id: id, label: label, address: address}, nil
}

// Close unmaps the file. Outstanding Counter handles must not be used
// after Close.
func (f *CountersFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapping == nil {
		return nil
	}
	mapping := f.mapping
	f.mapping = nil
	if err := unix.Munmap(mapping); err != nil {
		return fmt.Errorf("observe: unmapping counters file: %w", err)
	}
	return f.file.Close()
}

// Counter is a handle to one allocated slot. Operations are atomic
// and lock-free; Increment on the duty cycle costs one LOCK XADD.
type Counter struct {
	id      int32
	label   string
	address *int64
}

// ID returns the counter's slot index.
func (c *Counter) ID() int32 { return c.id }

// Label returns the display label.
func (c *Counter) Label() string { return c.label }

// Get returns the current value.
func (c *Counter) Get() int64 { return atomic.LoadInt64(c.address) }

// Set stores value.
func (c *Counter) Set(value int64) { atomic.StoreInt64(c.address, value) }

// Add adds delta and returns the new value.
func (c *Counter) Add(delta int64) int64 { return atomic.AddInt64(c.address, delta) }

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 { return atomic.AddInt64(c.address, 1) }

// AgentKey builds the key buffer for an agent-scoped counter: the
// 64-bit agent ID little-endian followed by the UTF-8 agent name.
func AgentKey(agentID int64, agentName string) []byte {
	key := make([]byte, 8+len(agentName))
	binary.LittleEndian.PutUint64(key, uint64(agentID))
	copy(key[8:], agentName)
	return key
}

// AgentLabel builds the display label for an agent-scoped counter.
func AgentLabel(counterName string, agentID int64, agentName string) string {
	return fmt.Sprintf("%s: NodeId=%d Name=%s", counterName, agentID, agentName)
}
