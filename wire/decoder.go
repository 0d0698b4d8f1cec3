// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a message is truncated.
var ErrShortBuffer = errors.New("wire: short buffer")

// Decoder decodes messages, reusing internal scratch for tensor
// dimension and tuple element storage across calls. The decoded
// Message borrows from both the input buffer and the decoder; it is
// valid only until the next Decode call.
//
// A Decoder is owned by one agent thread.
type Decoder struct {
	dims   []int32
	origin []int32
	tuple  []Value
}

// NewDecoder returns a Decoder with scratch capacity reserved.
func NewDecoder() *Decoder {
	return &Decoder{
		dims:   make([]int32, 0, MaxTensorDims),
		origin: make([]int32, 0, MaxTensorDims),
		tuple:  make([]Value, 0, MaxTupleElements),
	}
}

// Decode parses one message from buf into m. Returns the number of
// bytes consumed.
func (d *Decoder) Decode(buf []byte, m *Message) (int, error) {
	if len(buf) < fixedHeaderLength+3 {
		return 0, ErrShortBuffer
	}
	m.TimestampNs = int64(binary.LittleEndian.Uint64(buf[0:]))
	m.CorrelationID = int64(binary.LittleEndian.Uint64(buf[8:]))
	pos := fixedHeaderLength

	tagLen := int(buf[pos])
	pos++
	if pos+tagLen+2 > len(buf) {
		return 0, ErrShortBuffer
	}
	m.Tag = buf[pos : pos+tagLen]
	pos += tagLen

	format := Format(buf[pos])
	pos++

	keyLen := int(buf[pos])
	pos++
	if pos+keyLen > len(buf) {
		return 0, ErrShortBuffer
	}
	m.Key = buf[pos : pos+keyLen]
	pos += keyLen

	d.tuple = d.tuple[:0]
	pos, err := d.decodeValue(buf, pos, format, &m.Value)
	if err != nil {
		return 0, err
	}
	return pos, nil
}

func (d *Decoder) decodeValue(buf []byte, pos int, format Format, v *Value) (int, error) {
	*v = Value{Format: format}
	switch format {
	case FormatNothing:
		return pos, nil

	case FormatInt:
		if pos+8 > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Int = int64(binary.LittleEndian.Uint64(buf[pos:]))
		return pos + 8, nil

	case FormatFloat:
		if pos+8 > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Float = floatFromBits(binary.LittleEndian.Uint64(buf[pos:]))
		return pos + 8, nil

	case FormatBool:
		if pos+1 > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Bool = buf[pos] != 0
		return pos + 1, nil

	case FormatSymbol:
		if pos+1 > len(buf) {
			return 0, ErrShortBuffer
		}
		n := int(buf[pos])
		pos++
		if pos+n > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Bytes = buf[pos : pos+n]
		return pos + n, nil

	case FormatString:
		if pos+4 > len(buf) {
			return 0, ErrShortBuffer
		}
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if pos+n > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Bytes = buf[pos : pos+n]
		return pos + n, nil

	case FormatTuple:
		if pos+1 > len(buf) {
			return 0, ErrShortBuffer
		}
		count := int(buf[pos])
		pos++
		if count > MaxTupleElements {
			return 0, fmt.Errorf("wire: tuple arity %d exceeds %d", count, MaxTupleElements)
		}
		start := len(d.tuple)
		for i := 0; i < count; i++ {
			if pos+1 > len(buf) {
				return 0, ErrShortBuffer
			}
			elemFormat := Format(buf[pos])
			pos++
			switch elemFormat {
			case FormatTuple, FormatArray, FormatTensor:
				return 0, fmt.Errorf("wire: tuple element format %s not scalar", elemFormat)
			}
			d.tuple = append(d.tuple, Value{})
			var err error
			pos, err = d.decodeValue(buf, pos, elemFormat, &d.tuple[len(d.tuple)-1])
			if err != nil {
				return 0, err
			}
		}
		v.Format = FormatTuple
		v.Tuple = d.tuple[start:]
		return pos, nil

	case FormatArray:
		if pos+5 > len(buf) {
			return 0, ErrShortBuffer
		}
		elem := Format(buf[pos])
		pos++
		count := int32(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		size := ElemSize(elem)
		if size == 0 {
			return 0, fmt.Errorf("wire: array element format %s not primitive", elem)
		}
		n := int(count) * size
		if pos+n > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Elem = elem
		v.Count = count
		v.Bytes = buf[pos : pos+n]
		return pos + n, nil

	case FormatTensor:
		if pos+3 > len(buf) {
			return 0, ErrShortBuffer
		}
		elem := Format(buf[pos])
		pos++
		order := MajorOrder(buf[pos])
		pos++
		rank := int(buf[pos])
		pos++
		if ElemSize(elem) == 0 {
			return 0, fmt.Errorf("wire: tensor element format %s not primitive", elem)
		}
		if rank == 0 || rank > MaxTensorDims {
			return 0, fmt.Errorf("wire: tensor rank %d out of range", rank)
		}
		if pos+4*rank+1 > len(buf) {
			return 0, ErrShortBuffer
		}
		d.dims = d.dims[:0]
		for i := 0; i < rank; i++ {
			d.dims = append(d.dims, int32(binary.LittleEndian.Uint32(buf[pos:])))
			pos += 4
		}
		originCount := int(buf[pos])
		pos++
		if originCount != 0 && originCount != rank {
			return 0, fmt.Errorf("wire: tensor origin count %d does not match rank %d", originCount, rank)
		}
		if pos+4*originCount+4 > len(buf) {
			return 0, ErrShortBuffer
		}
		d.origin = d.origin[:0]
		for i := 0; i < originCount; i++ {
			d.origin = append(d.origin, int32(binary.LittleEndian.Uint32(buf[pos:])))
			pos += 4
		}
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if pos+n > len(buf) {
			return 0, ErrShortBuffer
		}
		v.Elem = elem
		v.Order = order
		v.Dims = d.dims
		if originCount > 0 {
			v.Origin = d.origin
		}
		v.Bytes = buf[pos : pos+n]
		return pos + n, nil

	default:
		return 0, fmt.Errorf("wire: unknown format byte %d", uint8(format))
	}
}
