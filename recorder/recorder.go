// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/cadence-rtc/cadence/lib/codec"
	"github.com/cadence-rtc/cadence/transport"
)

// manifestMagic identifies a Cadence recording manifest.
const manifestMagic = "cadence-recording"

// manifestVersion is bumped on incompatible manifest changes.
const manifestVersion = 1

// ManifestHeader opens the manifest CBOR stream.
type ManifestHeader struct {
	Magic    string `cbor:"magic"`
	Version  int    `cbor:"version"`
	Channel  string `cbor:"channel"`
	StreamID int32  `cbor:"stream_id"`
}

// SegmentEntry describes one sealed segment in the data file.
type SegmentEntry struct {
	// Offset is the segment's byte position in the data file.
	Offset int64 `cbor:"offset"`
	// Length is the stored (possibly compressed) byte count.
	Length int32 `cbor:"length"`
	// RawLength is the uncompressed byte count.
	RawLength int32 `cbor:"raw_length"`
	// Messages is the number of messages in the segment.
	Messages int32 `cbor:"messages"`
	// Compression is the algorithm the segment was stored with.
	Compression CompressionTag `cbor:"compression"`
	// Hash is the BLAKE3 digest of the stored bytes.
	Hash []byte `cbor:"hash"`
}

// Config parameterizes a Recorder.
type Config struct {
	// SegmentBytes is the raw segment size that triggers a seal.
	// Defaults to DefaultSegmentBytes.
	SegmentBytes int
	// Compression selects the seal algorithm. The zero value stores
	// segments raw; cadence-agent's --record-compression flag
	// defaults to zstd.
	Compression CompressionTag
	// Channel and StreamID label the manifest for later tooling.
	Channel  string
	StreamID int32
}

// DefaultSegmentBytes is the default raw segment size.
const DefaultSegmentBytes = 1 << 20

// Recorder captures one subscription into a data file and manifest.
type Recorder struct {
	subscription transport.Subscription
	assembler    *transport.FragmentAssembler
	config       Config

	data     *os.File
	manifest *os.File
	entries  *codec.Encoder

	segment  []byte
	messages int32
	offset   int64

	segmentsSealed int64
	totalMessages  int64
	closed         bool
	pollErr        error
}

// New creates a recorder writing to dataPath and dataPath+".manifest".
func New(subscription transport.Subscription, dataPath string, config Config) (*Recorder, error) {
	if config.SegmentBytes <= 0 {
		config.SegmentBytes = DefaultSegmentBytes
	}

	data, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: creating data file: %w", err)
	}
	manifest, err := os.OpenFile(dataPath+".manifest", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("recorder: creating manifest: %w", err)
	}

	r := &Recorder{
		subscription: subscription,
		config:       config,
		data:         data,
		manifest:     manifest,
		entries:      codec.NewEncoder(manifest),
		segment:      make([]byte, 0, config.SegmentBytes+64*1024),
	}
	r.assembler = transport.NewFragmentAssembler(r.onMessage, 0)

	if err := r.entries.Encode(ManifestHeader{
		Magic:    manifestMagic,
		Version:  manifestVersion,
		Channel:  config.Channel,
		StreamID: config.StreamID,
	}); err != nil {
		r.closeFiles()
		return nil, fmt.Errorf("recorder: writing manifest header: %w", err)
	}
	return r, nil
}

// Poll drains up to limit fragments from the subscription and returns
// the number received. Seal errors surface on the next Poll or Close.
func (r *Recorder) Poll(limit int) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("recorder: closed")
	}
	if r.pollErr != nil {
		err := r.pollErr
		r.pollErr = nil
		return 0, err
	}
	return r.subscription.Poll(r.assembler.OnFragment, limit), nil
}

// onMessage appends one reassembled message to the open segment.
func (r *Recorder) onMessage(buffer []byte, _ transport.Flags) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(buffer)))
	r.segment = append(r.segment, prefix[:]...)
	r.segment = append(r.segment, buffer...)
	r.messages++
	r.totalMessages++

	if len(r.segment) >= r.config.SegmentBytes {
		if err := r.seal(); err != nil && r.pollErr == nil {
			r.pollErr = err
		}
	}
}

// seal compresses, hashes, and writes the open segment, then records
// its manifest entry.
func (r *Recorder) seal() error {
	if len(r.segment) == 0 {
		return nil
	}
	stored, tag, err := compressSegment(r.segment, r.config.Compression)
	if err != nil {
		return err
	}
	digest := blake3.Sum256(stored)

	if _, err := r.data.Write(stored); err != nil {
		return fmt.Errorf("recorder: writing segment: %w", err)
	}
	entry := SegmentEntry{
		Offset:      r.offset,
		Length:      int32(len(stored)),
		RawLength:   int32(len(r.segment)),
		Messages:    r.messages,
		Compression: tag,
		Hash:        digest[:],
	}
	if err := r.entries.Encode(entry); err != nil {
		return fmt.Errorf("recorder: writing manifest entry: %w", err)
	}

	r.offset += int64(len(stored))
	r.segmentsSealed++
	r.segment = r.segment[:0]
	r.messages = 0
	return nil
}

// Stats reports sealed segments and total messages captured,
// including messages still in the open segment.
func (r *Recorder) Stats() (segments, messages int64) {
	return r.segmentsSealed, r.totalMessages
}

// Close seals the open segment and syncs both files.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	sealErr := r.seal()
	if r.pollErr != nil && sealErr == nil {
		sealErr = r.pollErr
	}
	if err := r.closeFiles(); err != nil && sealErr == nil {
		sealErr = err
	}
	return sealErr
}

func (r *Recorder) closeFiles() error {
	var firstErr error
	for _, file := range []*os.File{r.data, r.manifest} {
		if err := file.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
