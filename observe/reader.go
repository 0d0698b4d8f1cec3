// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reader is a read-only mapping of a counters file, used by
// out-of-process tools (cadence-stat) to watch live values.
type Reader struct {
	file        *os.File
	mapping     []byte
	maxCounters int
}

// CounterRecord is one allocated counter as seen by a reader. Key
// references the mapped file and is only valid during the ForEach
// callback.
type CounterRecord struct {
	ID     int32
	TypeID uint32
	Key    []byte
	Label  string
	Value  int64
}

// OpenReader maps the counters file at path read-only.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("observe: opening counters file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("observe: stat counters file: %w", err)
	}
	if info.Size() < headerLength {
		file.Close()
		return nil, fmt.Errorf("observe: counters file truncated (%d bytes)", info.Size())
	}
	mapping, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("observe: mapping counters file: %w", err)
	}

	if binary.LittleEndian.Uint32(mapping[0:]) != fileMagic {
		unix.Munmap(mapping)
		file.Close()
		return nil, fmt.Errorf("observe: bad counters file magic")
	}
	if version := binary.LittleEndian.Uint32(mapping[4:]); version != fileVersion {
		unix.Munmap(mapping)
		file.Close()
		return nil, fmt.Errorf("observe: counters file version %d, reader understands %d", version, fileVersion)
	}
	maxCounters := int(binary.LittleEndian.Uint32(mapping[8:]))
	if fileLength(maxCounters) > int(info.Size()) {
		unix.Munmap(mapping)
		file.Close()
		return nil, fmt.Errorf("observe: counters file shorter than its declared capacity")
	}

	return &Reader{file: file, mapping: mapping, maxCounters: maxCounters}, nil
}

// ForEach invokes visit for every allocated counter in slot order.
func (r *Reader) ForEach(visit func(record CounterRecord)) {
	for id := int32(0); int(id) < r.maxCounters; id++ {
		meta := r.mapping[metadataOffset(id):]
		state := atomic.LoadUint32((*uint32)(unsafe.Pointer(&meta[0])))
		if state != stateAllocated {
			continue
		}
		keyLen := int(binary.LittleEndian.Uint32(meta[8:]))
		if keyLen > MaxKeyLength {
			keyLen = MaxKeyLength
		}
		labelLen := int(binary.LittleEndian.Uint32(meta[12+MaxKeyLength:]))
		if labelLen > MaxLabelLength {
			labelLen = MaxLabelLength
		}
		value := atomic.LoadInt64((*int64)(unsafe.Pointer(&r.mapping[valueOffset(r.maxCounters, id)])))
		visit(CounterRecord{
			ID:     id,
			TypeID: binary.LittleEndian.Uint32(meta[4:]),
			Key:    meta[12 : 12+keyLen],
			Label:  string(meta[16+MaxKeyLength : 16+MaxKeyLength+labelLen]),
			Value:  value,
		})
	}
}

// Close unmaps the file.
func (r *Reader) Close() error {
	if r.mapping == nil {
		return nil
	}
	mapping := r.mapping
	r.mapping = nil
	if err := unix.Munmap(mapping); err != nil {
		return fmt.Errorf("observe: unmapping counters file: %w", err)
	}
	return r.file.Close()
}
