// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package transport

// FragmentAssembler reassembles fragmented messages before invoking a
// delegate handler. Unfragmented frames pass through without copying;
// fragmented messages accumulate into a preallocated buffer sized for
// the largest expected message.
//
// One assembler serves one subscription; it is not safe for
// concurrent use.
type FragmentAssembler struct {
	delegate FragmentHandler
	buffer   []byte
	length   int
	building bool
	overrun  bool
}

// DefaultAssemblyCapacity bounds reassembled message size. Matches the
// default stream term length: a message that cannot fit the ring
// cannot arrive in the first place.
const DefaultAssemblyCapacity = DefaultTermLength

// NewFragmentAssembler wraps delegate with reassembly. capacity is the
// largest message the assembler accepts; messages that exceed it are
// dropped whole.
func NewFragmentAssembler(delegate FragmentHandler, capacity int) *FragmentAssembler {
	if capacity <= 0 {
		capacity = DefaultAssemblyCapacity
	}
	return &FragmentAssembler{
		delegate: delegate,
		buffer:   make([]byte, capacity),
	}
}

// OnFragment is the FragmentHandler to hand to Subscription.Poll.
func (a *FragmentAssembler) OnFragment(buffer []byte, flags Flags) {
	if flags&FlagsUnfragmented == FlagsUnfragmented {
		a.delegate(buffer, FlagsUnfragmented)
		return
	}

	if flags&FlagBegin != 0 {
		a.length = 0
		a.building = true
		a.overrun = false
	}
	if !a.building {
		// CONTINUE/END without a BEGIN: the start of this message
		// predates our subscription. Drop.
		return
	}
	if a.length+len(buffer) > len(a.buffer) {
		a.overrun = true
	}
	if !a.overrun {
		a.length += copy(a.buffer[a.length:], buffer)
	}
	if flags&FlagEnd != 0 {
		building, overrun, length := a.building, a.overrun, a.length
		a.building = false
		a.overrun = false
		a.length = 0
		if building && !overrun {
			a.delegate(a.buffer[:length], FlagsUnfragmented)
		}
	}
}
