// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/binary"

// Message is one wire record: fixed header, key, and value.
type Message struct {
	TimestampNs   int64
	CorrelationID int64
	// Tag identifies the producing agent. At most MaxTagLength bytes.
	Tag []byte
	// Key is the symbol name the message is about (event name or
	// property key). At most MaxKeyLength bytes.
	Key []byte
	// Value is the payload.
	Value Value
}

// fixedHeaderLength is the fixed portion of the envelope: timestamp
// and correlation ID. The tag and key length prefixes are accounted
// separately.
const fixedHeaderLength = 8 + 8

// EnvelopeLength returns the encoded length of everything except the
// raw element payload of an Array or Tensor value. For scalar, tuple,
// symbol, and string values this equals EncodedLength.
func EnvelopeLength(m *Message) int {
	n := fixedHeaderLength + 1 + len(m.Tag) + 1 + 1 + len(m.Key)
	n += valuePrefixLength(&m.Value)
	return n
}

// EncodedLength returns the full inline encoded length of m.
func EncodedLength(m *Message) int {
	return EnvelopeLength(m) + payloadLength(&m.Value)
}

// valuePrefixLength is the encoded value length excluding a trailing
// Array/Tensor element payload.
func valuePrefixLength(v *Value) int {
	switch v.Format {
	case FormatNothing:
		return 0
	case FormatInt, FormatFloat:
		return 8
	case FormatBool:
		return 1
	case FormatSymbol:
		return 1 + len(v.Bytes)
	case FormatString:
		return 4 + len(v.Bytes)
	case FormatTuple:
		n := 1
		for i := range v.Tuple {
			n += 1 + valuePrefixLength(&v.Tuple[i])
		}
		return n
	case FormatArray:
		return 1 + 4
	case FormatTensor:
		n := 1 + 1 + 1 + 4*len(v.Dims) + 1 + 4*len(v.Origin) + 4
		return n
	default:
		return 0
	}
}

// payloadLength is the trailing element payload length of an
// Array/Tensor value, zero for every other format.
func payloadLength(v *Value) int {
	switch v.Format {
	case FormatArray, FormatTensor:
		return len(v.Bytes)
	default:
		return 0
	}
}

// EncodeMessage encodes m fully inline into buf and returns the bytes
// written. Returns 0, false when buf is too small or m violates an
// encoding bound; the caller discards the publish (size overruns are
// programmer errors, not runtime ones; property value sizes are
// bounded by the property type set).
func EncodeMessage(buf []byte, m *Message) (int, bool) {
	n, ok := EncodeEnvelope(buf, m)
	if !ok {
		return 0, false
	}
	payload := payloadLength(&m.Value)
	if payload == 0 {
		return n, true
	}
	if n+payload > len(buf) {
		return 0, false
	}
	copy(buf[n:], m.Value.Bytes)
	return n + payload, true
}

// EncodeEnvelope encodes everything except a trailing Array/Tensor
// element payload into buf. Publishers pass the envelope and the raw
// payload as separate fragments of one vectored offer.
func EncodeEnvelope(buf []byte, m *Message) (int, bool) {
	if len(m.Tag) > MaxTagLength || len(m.Key) > MaxKeyLength {
		return 0, false
	}
	need := EnvelopeLength(m)
	if need > len(buf) {
		return 0, false
	}

	binary.LittleEndian.PutUint64(buf[0:], uint64(m.TimestampNs))
	binary.LittleEndian.PutUint64(buf[8:], uint64(m.CorrelationID))
	pos := fixedHeaderLength
	buf[pos] = byte(len(m.Tag))
	pos++
	pos += copy(buf[pos:], m.Tag)
	buf[pos] = byte(m.Value.Format)
	pos++
	buf[pos] = byte(len(m.Key))
	pos++
	pos += copy(buf[pos:], m.Key)

	pos, ok := encodeValuePrefix(buf, pos, &m.Value)
	if !ok {
		return 0, false
	}
	return pos, true
}

func encodeValuePrefix(buf []byte, pos int, v *Value) (int, bool) {
	switch v.Format {
	case FormatNothing:
		return pos, true

	case FormatInt:
		binary.LittleEndian.PutUint64(buf[pos:], uint64(v.Int))
		return pos + 8, true

	case FormatFloat:
		binary.LittleEndian.PutUint64(buf[pos:], floatToBits(v.Float))
		return pos + 8, true

	case FormatBool:
		if v.Bool {
			buf[pos] = 1
		} else {
			buf[pos] = 0
		}
		return pos + 1, true

	case FormatSymbol:
		if len(v.Bytes) > MaxKeyLength {
			return 0, false
		}
		buf[pos] = byte(len(v.Bytes))
		pos++
		return pos + copy(buf[pos:], v.Bytes), true

	case FormatString:
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(v.Bytes)))
		pos += 4
		return pos + copy(buf[pos:], v.Bytes), true

	case FormatTuple:
		if len(v.Tuple) > MaxTupleElements {
			return 0, false
		}
		buf[pos] = byte(len(v.Tuple))
		pos++
		for i := range v.Tuple {
			elem := &v.Tuple[i]
			switch elem.Format {
			case FormatTuple, FormatArray, FormatTensor:
				// Tuples nest scalars only.
				return 0, false
			}
			buf[pos] = byte(elem.Format)
			pos++
			var ok bool
			pos, ok = encodeValuePrefix(buf, pos, elem)
			if !ok {
				return 0, false
			}
		}
		return pos, true

	case FormatArray:
		if ElemSize(v.Elem) == 0 || int(v.Count)*ElemSize(v.Elem) != len(v.Bytes) {
			return 0, false
		}
		buf[pos] = byte(v.Elem)
		pos++
		binary.LittleEndian.PutUint32(buf[pos:], uint32(v.Count))
		return pos + 4, true

	case FormatTensor:
		if ElemSize(v.Elem) == 0 || len(v.Dims) == 0 || len(v.Dims) > MaxTensorDims {
			return 0, false
		}
		if v.Origin != nil && len(v.Origin) != len(v.Dims) {
			return 0, false
		}
		buf[pos] = byte(v.Elem)
		pos++
		buf[pos] = byte(v.Order)
		pos++
		buf[pos] = byte(len(v.Dims))
		pos++
		for _, d := range v.Dims {
			binary.LittleEndian.PutUint32(buf[pos:], uint32(d))
			pos += 4
		}
		buf[pos] = byte(len(v.Origin))
		pos++
		for _, o := range v.Origin {
			binary.LittleEndian.PutUint32(buf[pos:], uint32(o))
			pos += 4
		}
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(v.Bytes)))
		return pos + 4, true

	default:
		return 0, false
	}
}
