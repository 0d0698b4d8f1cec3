// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the binary message format carried on Cadence
// streams and a flyweight codec over caller-owned buffers.
//
// A message is a self-describing record:
//
//	timestamp    i64 (epoch nanoseconds, little-endian)
//	correlation  i64
//	tag          u8 length + bytes
//	format       u8 (Nothing, Int, Float, Bool, Symbol, String,
//	                 Tuple, Array, Tensor)
//	key          u8 length + bytes (symbol name)
//	value        format-specific payload
//
// Array and Tensor values keep their element payload as raw
// little-endian bytes so that publishers can emit the envelope and the
// payload as separate fragments of one vectored write, without copying
// element data through an intermediate buffer.
//
// Encoding writes into a buffer the caller has already claimed on a
// stream; decoding borrows byte slices from the inbound buffer. Neither
// direction allocates. Encoded values remain valid only as long as the
// underlying buffer.
package wire
