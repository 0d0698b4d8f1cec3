// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the algorithm used for a sealed segment.
// Stored in manifest entries (1 byte each); protocol constants.
type CompressionTag uint8

const (
	// CompressionNone stores the segment raw. For streams of
	// already-compressed payloads where recompression wastes CPU.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is block-mode LZ4: fast default for binary
	// message payloads (~1.5-2x ratio, multi-GB/s decode).
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at its default level: better ratios
	// for text-like payloads at somewhat higher CPU cost.
	CompressionZstd CompressionTag = 2
)

// String returns the tag's name, as accepted by ParseCompressionTag.
// Manifest entries store the numeric tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a tag from its name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("recorder: unknown compression tag %q", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("recorder: zstd encoder init: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("recorder: zstd decoder init: " + err.Error())
	}
}

// compressSegment compresses data with the given algorithm. When the
// output would not be smaller than the input, the raw bytes are kept
// and the returned tag is CompressionNone.
func compressSegment(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil

	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("recorder: lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return data, CompressionNone, nil
		}
		return destination[:written], CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("recorder: unsupported compression tag %d", tag)
	}
}

// decompressSegment reverses compressSegment. The raw length must
// match exactly; a mismatch means corruption the hash check missed,
// and is an error.
func decompressSegment(compressed []byte, tag CompressionTag, rawLength int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != rawLength {
			return nil, fmt.Errorf("recorder: raw segment is %d bytes, manifest says %d", len(compressed), rawLength)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, rawLength)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("recorder: lz4 decompress: %w", err)
		}
		if read != rawLength {
			return nil, fmt.Errorf("recorder: lz4 decompressed %d bytes, manifest says %d", read, rawLength)
		}
		return destination, nil

	case CompressionZstd:
		destination, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, rawLength))
		if err != nil {
			return nil, fmt.Errorf("recorder: zstd decompress: %w", err)
		}
		if len(destination) != rawLength {
			return nil, fmt.Errorf("recorder: zstd decompressed %d bytes, manifest says %d", len(destination), rawLength)
		}
		return destination, nil

	default:
		return nil, fmt.Errorf("recorder: unsupported compression tag %d", tag)
	}
}
