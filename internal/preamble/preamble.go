// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package preamble encodes and decodes the self-describing metadata block at
// the start of every index file.
//
// The preamble is a JSON object padded with zero bytes to a fixed capacity.
// The capacity is itself a field of the object, so decoding first scans a
// short prefix of the file for that one field, then reads and parses the
// whole block.  The field must come first in the encoding for this to work.
package preamble

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"github.com/bpowers/seen/internal/hashalgo"
	"github.com/bpowers/seen/internal/ondisk"
)

const (
	// DefaultCapacity is the number of bytes reserved for the preamble.
	DefaultCapacity = 16 * 1024
	// BootstrapLen bounds the prefix scanned for the capacity field.
	BootstrapLen = 200

	placeholderStart = "<<PREAMBLE_WILL_GO_HERE>>"
	placeholderEnd   = "<<PREAMBLE_WILL_END_HERE>>"

	// MinCapacity is the smallest capacity that can hold a placeholder.
	MinCapacity = int64(len(placeholderStart) + len(placeholderEnd))
	// MaxCapacity bounds the preamble block read from an untrusted file.
	MaxCapacity = 1 << 20
)

var (
	ErrCapacityOverflow = errors.New("encoded preamble exceeds reserved capacity")
	ErrCorrupt          = errors.New("corrupt preamble")
)

var capacityField = regexp.MustCompile(`"preamble_length_bytes"\s*:\s*(\d+)`)

// Metadata describes how to interpret every byte after the preamble.  Field
// order matters: CapacityBytes must be encoded first.
type Metadata struct {
	CapacityBytes         int64              `json:"preamble_length_bytes"`
	Algorithm             hashalgo.Algorithm `json:"hash_algo"`
	KeyWidth              int                `json:"hash_size_bytes"`
	ByteOrder             ondisk.ByteOrder   `json:"endian"`
	Sorted                bool               `json:"is_sorted"`
	KeyCount              int64              `json:"num_hashes"`
	SourceBytesRead       int64              `json:"total_bytes_read"`
	SourceCompressedBytes int64              `json:"gzip_file_size_bytes"`
	// ArtifactSizeBytes is the total file size, written for older readers.
	ArtifactSizeBytes int64 `json:"optimized_file_size_bytes,omitempty"`
}

// New returns Metadata for algo with the default capacity and byte order.
func New(algo hashalgo.Algorithm) Metadata {
	return Metadata{
		CapacityBytes: DefaultCapacity,
		Algorithm:     algo,
		KeyWidth:      algo.Width(),
		ByteOrder:     ondisk.LittleEndian,
	}
}

// Validate checks the internal consistency of m.
func (m *Metadata) Validate() error {
	if m.CapacityBytes <= 0 || m.CapacityBytes > MaxCapacity {
		return fmt.Errorf("capacity %d outside (0, %d]", m.CapacityBytes, MaxCapacity)
	}
	if !m.Algorithm.Valid() {
		return fmt.Errorf("%w: %s", hashalgo.ErrUnsupportedAlgorithm, m.Algorithm)
	}
	if m.KeyWidth != m.Algorithm.Width() {
		return fmt.Errorf("key width %d doesn't match the %d-byte output of %s", m.KeyWidth, m.Algorithm.Width(), m.Algorithm)
	}
	if !m.ByteOrder.Valid() {
		return fmt.Errorf("%w: %s", ondisk.ErrUnknownByteOrder, m.ByteOrder)
	}
	if m.KeyCount < 0 || m.SourceBytesRead < 0 || m.SourceCompressedBytes < 0 || m.ArtifactSizeBytes < 0 {
		return errors.New("negative count in preamble")
	}
	if m.KeyCount > (math.MaxInt64-m.CapacityBytes)/int64(m.KeyWidth) {
		return fmt.Errorf("%d %d-byte keys overflow the file size", m.KeyCount, m.KeyWidth)
	}
	return nil
}

// BodySize is the number of bytes the key array after the preamble occupies.
func (m *Metadata) BodySize() int64 {
	return m.KeyCount * int64(m.KeyWidth)
}

// Encode serializes m and pads it with zeros to exactly m.CapacityBytes.
func Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("m.Validate: %w", err)
	}
	encoded, err := json.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	if int64(len(encoded)) > m.CapacityBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrCapacityOverflow, len(encoded), m.CapacityBytes)
	}
	buf := make([]byte, m.CapacityBytes)
	copy(buf, encoded)
	return buf, nil
}

// Placeholder returns capacity bytes that reserve room for a preamble that
// will be written once the final counts are known.  A file still holding the
// placeholder fails to Decode.
func Placeholder(capacity int64) ([]byte, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("capacity %d smaller than the %d byte placeholder", capacity, MinCapacity)
	}
	buf := make([]byte, capacity)
	copy(buf, placeholderStart)
	copy(buf[capacity-int64(len(placeholderEnd)):], placeholderEnd)
	return buf, nil
}

// Decode reads the preamble from the start of r, a file of size bytes.
func Decode(r io.ReaderAt, size int64) (Metadata, error) {
	prefix := make([]byte, min(int64(BootstrapLen), size))
	if err := readFullAt(r, prefix, 0); err != nil {
		return Metadata{}, fmt.Errorf("reading preamble prefix: %w", err)
	}
	capacity, err := bootstrapCapacity(prefix)
	if err != nil {
		return Metadata{}, err
	}
	if capacity > size {
		return Metadata{}, &SizeError{
			What:     "preamble",
			Expected: capacity,
			Actual:   size,
			Err:      ErrCorrupt,
		}
	}

	block := make([]byte, capacity)
	if err := readFullAt(r, block, 0); err != nil {
		return Metadata{}, fmt.Errorf("reading preamble: %w", err)
	}

	m, err := Unmarshal(block)
	if err != nil {
		return Metadata{}, err
	}
	if m.CapacityBytes != capacity {
		return Metadata{}, fmt.Errorf("%w: declares capacity %d but was located with %d", ErrCorrupt, m.CapacityBytes, capacity)
	}
	return m, nil
}

// Unmarshal parses a zero-padded preamble block.
func Unmarshal(block []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(bytes.Trim(block, "\x00"), &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return m, nil
}

// bootstrapCapacity finds the capacity field in the raw prefix of a file,
// before the length of the whole preamble is known.
func bootstrapCapacity(prefix []byte) (int64, error) {
	match := capacityField.FindSubmatch(prefix)
	if match == nil {
		if bytes.HasPrefix(prefix, []byte(placeholderStart)) {
			return 0, fmt.Errorf("%w: placeholder never replaced (interrupted build?)", ErrCorrupt)
		}
		return 0, fmt.Errorf("%w: couldn't find preamble_length_bytes in the first %d bytes", ErrCorrupt, len(prefix))
	}
	capacity, err := strconv.ParseInt(string(match[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: preamble_length_bytes: %w", ErrCorrupt, err)
	}
	if capacity <= 0 || capacity > MaxCapacity {
		return 0, fmt.Errorf("%w: preamble_length_bytes is %d, outside (0, %d]", ErrCorrupt, capacity, MaxCapacity)
	}
	return capacity, nil
}

func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read of %d (wanted %d)", n, len(buf))
	}
	return err
}

// SizeError reports a disagreement between the sizes a preamble declares and
// what is actually on disk.
type SizeError struct {
	What     string
	Expected int64
	Actual   int64
	Err      error
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: %s needs %d bytes, found %d", e.Err, e.What, e.Expected, e.Actual)
}

func (e *SizeError) Unwrap() error {
	return e.Err
}
