// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

func floatToBits(f float64) uint64   { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// Format discriminates the value payload of a message. These values
// are protocol constants; changing them breaks wire compatibility.
type Format uint8

const (
	// FormatNothing is the absent value. A message with no value is a
	// read request for its key.
	FormatNothing Format = 0
	// FormatInt is a 64-bit signed integer.
	FormatInt Format = 1
	// FormatFloat is an IEEE 754 64-bit float.
	FormatFloat Format = 2
	// FormatBool is a single byte, 0 or 1.
	FormatBool Format = 3
	// FormatSymbol is an interned short identifier, carried by name.
	FormatSymbol Format = 4
	// FormatString is an arbitrary byte string.
	FormatString Format = 5
	// FormatTuple is a fixed sequence of scalar values.
	FormatTuple Format = 6
	// FormatArray is a 1-D array of a primitive element format.
	FormatArray Format = 7
	// FormatTensor is an N-D array with dimension and origin metadata.
	FormatTensor Format = 8
)

// String returns the format name for diagnostics.
func (f Format) String() string {
	switch f {
	case FormatNothing:
		return "nothing"
	case FormatInt:
		return "int"
	case FormatFloat:
		return "float"
	case FormatBool:
		return "bool"
	case FormatSymbol:
		return "symbol"
	case FormatString:
		return "string"
	case FormatTuple:
		return "tuple"
	case FormatArray:
		return "array"
	case FormatTensor:
		return "tensor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// MajorOrder is the element ordering of a tensor payload.
type MajorOrder uint8

const (
	// RowMajor stores the last dimension contiguously.
	RowMajor MajorOrder = 0
	// ColumnMajor stores the first dimension contiguously.
	ColumnMajor MajorOrder = 1
)

// Encoding bounds. Lengths are carried in single bytes or u32 words;
// these caps keep every message's envelope size computable up front.
const (
	// MaxTagLength bounds the header tag.
	MaxTagLength = 64
	// MaxKeyLength bounds the key symbol name.
	MaxKeyLength = 255
	// MaxTupleElements bounds tuple arity.
	MaxTupleElements = 16
	// MaxTensorDims bounds tensor rank.
	MaxTensorDims = 8
)

// ElemSize returns the byte width of an Array or Tensor element
// format, or 0 for formats that cannot be elements.
func ElemSize(f Format) int {
	switch f {
	case FormatInt, FormatFloat:
		return 8
	case FormatBool:
		return 1
	default:
		return 0
	}
}

// Value is the variant payload of a message. Exactly the fields
// implied by Format are meaningful; the rest are ignored. Values do
// not own their byte storage: Bytes, Dims, Origin, and Tuple may
// reference buffers owned by a property store, a decoder, or an
// inbound transport fragment.
type Value struct {
	Format Format

	// Int, Float, Bool hold scalar payloads.
	Int   int64
	Float float64
	Bool  bool

	// Bytes holds the name bytes of a Symbol, the content of a
	// String, or the raw little-endian element payload of an Array or
	// Tensor.
	Bytes []byte

	// Elem is the element format of an Array or Tensor.
	Elem Format
	// Count is the element count of an Array.
	Count int32

	// Order, Dims, Origin describe a Tensor. Origin may be nil.
	Order  MajorOrder
	Dims   []int32
	Origin []int32

	// Tuple holds the elements of a Tuple value. Elements must be
	// scalar formats (Nothing, Int, Float, Bool, Symbol, String).
	Tuple []Value
}

// Nothing returns the absent value.
func Nothing() Value { return Value{Format: FormatNothing} }

// Int64 returns an integer value.
func Int64(v int64) Value { return Value{Format: FormatInt, Int: v} }

// Float64 returns a float value.
func Float64(v float64) Value { return Value{Format: FormatFloat, Float: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{Format: FormatBool, Bool: v} }

// Symbol returns a symbol value borrowing name.
func Symbol(name []byte) Value { return Value{Format: FormatSymbol, Bytes: name} }

// String returns a string value borrowing content.
func String(content []byte) Value { return Value{Format: FormatString, Bytes: content} }

// Array returns a 1-D array value over a raw little-endian element
// payload. The payload length must be count*ElemSize(elem).
func Array(elem Format, count int32, payload []byte) Value {
	return Value{Format: FormatArray, Elem: elem, Count: count, Bytes: payload}
}

// TupleOf returns a tuple value borrowing the element slice.
func TupleOf(elems []Value) Value { return Value{Format: FormatTuple, Tuple: elems} }

// IntAt reads the i-th element of an Int array payload.
func (v *Value) IntAt(i int) int64 {
	return int64(binary.LittleEndian.Uint64(v.Bytes[i*8:]))
}

// FloatAt reads the i-th element of a Float array payload.
func (v *Value) FloatAt(i int) float64 {
	return floatFromBits(binary.LittleEndian.Uint64(v.Bytes[i*8:]))
}

// PutIntAt writes the i-th element of an Int array payload.
func (v *Value) PutIntAt(i int, x int64) {
	binary.LittleEndian.PutUint64(v.Bytes[i*8:], uint64(x))
}

// PutFloatAt writes the i-th element of a Float array payload.
func (v *Value) PutFloatAt(i int, x float64) {
	binary.LittleEndian.PutUint64(v.Bytes[i*8:], floatToBits(x))
}
