// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/cadence-rtc/cadence/lib/codec"
)

// Replay reads a recording back, verifying every segment hash, and
// invokes visit with each captured message in capture order. Returns
// the manifest header and the message count.
func Replay(dataPath string, visit func(message []byte) error) (ManifestHeader, int64, error) {
	var header ManifestHeader

	manifestFile, err := os.Open(dataPath + ".manifest")
	if err != nil {
		return header, 0, fmt.Errorf("recorder: opening manifest: %w", err)
	}
	defer manifestFile.Close()
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return header, 0, fmt.Errorf("recorder: opening data file: %w", err)
	}
	defer dataFile.Close()

	decoder := codec.NewDecoder(manifestFile)
	if err := decoder.Decode(&header); err != nil {
		return header, 0, fmt.Errorf("recorder: reading manifest header: %w", err)
	}
	if header.Magic != manifestMagic {
		return header, 0, fmt.Errorf("recorder: %s is not a recording manifest", dataPath+".manifest")
	}
	if header.Version != manifestVersion {
		return header, 0, fmt.Errorf("recorder: manifest version %d, reader understands %d", header.Version, manifestVersion)
	}

	var replayed int64
	for index := 0; ; index++ {
		var entry SegmentEntry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return header, replayed, nil
			}
			return header, replayed, fmt.Errorf("recorder: reading manifest entry %d: %w", index, err)
		}

		stored := make([]byte, entry.Length)
		if _, err := dataFile.ReadAt(stored, entry.Offset); err != nil {
			return header, replayed, fmt.Errorf("recorder: reading segment %d: %w", index, err)
		}
		digest := blake3.Sum256(stored)
		if !bytes.Equal(digest[:], entry.Hash) {
			return header, replayed, fmt.Errorf("recorder: segment %d hash mismatch", index)
		}
		raw, err := decompressSegment(stored, entry.Compression, int(entry.RawLength))
		if err != nil {
			return header, replayed, fmt.Errorf("recorder: segment %d: %w", index, err)
		}

		for position := 0; position < len(raw); {
			if position+4 > len(raw) {
				return header, replayed, fmt.Errorf("recorder: segment %d truncated at %d", index, position)
			}
			length := int(binary.LittleEndian.Uint32(raw[position:]))
			position += 4
			if position+length > len(raw) {
				return header, replayed, fmt.Errorf("recorder: segment %d message overruns segment", index)
			}
			if err := visit(raw[position : position+length]); err != nil {
				return header, replayed, err
			}
			position += length
			replayed++
		}
	}
}
