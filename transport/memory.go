// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"sync"
)

// MemoryConfig sizes the streams of a memory driver.
type MemoryConfig struct {
	// TermLength is the ring capacity in bytes per stream. Must be a
	// multiple of 32. Defaults to DefaultTermLength.
	TermLength int
	// MTU is the maximum payload bytes per wire fragment. Defaults to
	// DefaultMTU.
	MTU int
}

// Defaults for MemoryConfig.
const (
	DefaultTermLength = 1 << 20
	DefaultMTU        = 4096
)

// NewMemoryDriver returns a Driver whose streams are in-process rings.
// Both endpoints of a stream must be created through the same driver.
func NewMemoryDriver(config MemoryConfig) *MemoryDriver {
	if config.TermLength == 0 {
		config.TermLength = DefaultTermLength
	}
	if config.MTU == 0 {
		config.MTU = DefaultMTU
	}
	return &MemoryDriver{
		config:  config,
		streams: make(map[endpoint]*ring),
	}
}

type endpoint struct {
	uri      string
	streamID int32
}

// MemoryDriver implements Driver over in-process rings. Safe for
// concurrent use: agents on different threads may share one driver.
type MemoryDriver struct {
	mu      sync.Mutex
	config  MemoryConfig
	streams map[endpoint]*ring
	closed  bool
}

func (d *MemoryDriver) stream(uri string, streamID int32) (*ring, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("transport: driver closed")
	}
	key := endpoint{uri: uri, streamID: streamID}
	r, ok := d.streams[key]
	if !ok {
		r = newRing(d.config.TermLength, d.config.MTU)
		d.streams[key] = r
	}
	return r, nil
}

// AddPublication attaches the writing end of (uri, streamID).
func (d *MemoryDriver) AddPublication(uri string, streamID int32) (Publication, error) {
	r, err := d.stream(uri, streamID)
	if err != nil {
		return nil, err
	}
	return &memPublication{ring: r, uri: uri, streamID: streamID}, nil
}

// AddSubscription attaches the reading end of (uri, streamID).
func (d *MemoryDriver) AddSubscription(uri string, streamID int32) (Subscription, error) {
	r, err := d.stream(uri, streamID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.subscribed = true
	r.mu.Unlock()
	return &memSubscription{
		ring:     r,
		uri:      uri,
		streamID: streamID,
		scratch:  make([]frameDesc, 0, 64),
	}, nil
}

// Close marks every stream closed. Outstanding publications observe
// OfferAdminAction.
func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.streams {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
	}
	d.closed = true
	return nil
}

type memPublication struct {
	ring     *ring
	uri      string
	streamID int32
	closed   bool

	// claim is reused across TryClaim calls; one claim may be
	// outstanding at a time, so a single backing struct suffices.
	claim memClaim
}

func (p *memPublication) TryClaim(length int) (Claim, bool) {
	if p.closed {
		return nil, false
	}
	buf, ok := p.ring.tryClaim(length)
	if !ok {
		return nil, false
	}
	p.claim = memClaim{ring: p.ring, buf: buf}
	return &p.claim, true
}

func (p *memPublication) Offer(fragments ...[]byte) OfferResult {
	if p.closed {
		return OfferNotConnected
	}
	return p.ring.offer(fragments)
}

func (p *memPublication) Channel() string { return p.uri }
func (p *memPublication) StreamID() int32 { return p.streamID }

func (p *memPublication) Close() error {
	p.closed = true
	return nil
}

type memClaim struct {
	ring *ring
	buf  []byte
}

func (c *memClaim) Buffer() []byte { return c.buf }
func (c *memClaim) Commit()        { c.ring.commitClaim(len(c.buf)) }
func (c *memClaim) Abort()         { c.ring.abortClaim() }

type memSubscription struct {
	ring     *ring
	uri      string
	streamID int32
	closed   bool
	scratch  []frameDesc
}

func (s *memSubscription) Poll(handler FragmentHandler, fragmentLimit int) int {
	if s.closed {
		return 0
	}
	descs, advance := s.ring.scan(s.scratch, fragmentLimit)
	s.scratch = descs
	if advance == 0 {
		return 0
	}
	for _, d := range descs {
		handler(s.ring.buf[d.offset:d.offset+d.length], d.flags)
	}
	s.ring.consume(advance)
	return len(descs)
}

func (s *memSubscription) Channel() string { return s.uri }
func (s *memSubscription) StreamID() int32 { return s.streamID }

func (s *memSubscription) Close() error {
	s.closed = true
	return nil
}
