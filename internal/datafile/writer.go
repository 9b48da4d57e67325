// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/preamble"
)

const defaultBufferSize = 4 * 1024 * 1024

var errAlreadyFinished = errors.New("datafile already finished")

// FileWriter is usually an *os.File, but specified as an interface for easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// Writer lays out an index file: a placeholder preamble is reserved up front,
// and Finish replaces it with the final metadata before appending the keys.
type Writer struct {
	f        FileWriter
	capacity int64
	off      int64
	finished atomic.Bool
}

// NewWriter reserves capacity bytes at the current (starting) position of f.
func NewWriter(f FileWriter, capacity int64) (*Writer, error) {
	placeholder, err := preamble.Placeholder(capacity)
	if err != nil {
		return nil, fmt.Errorf("preamble.Placeholder: %w", err)
	}
	if n, err := f.Write(placeholder); err != nil {
		return nil, fmt.Errorf("write placeholder: %w", err)
	} else if n != len(placeholder) {
		return nil, fmt.Errorf("write placeholder: short write of %d (wanted %d)", n, len(placeholder))
	}
	return &Writer{
		f:        f,
		capacity: capacity,
		off:      capacity,
	}, nil
}

// Capacity is the number of bytes reserved for the preamble.
func (w *Writer) Capacity() int64 {
	return w.capacity
}

// Size is the number of bytes written so far.
func (w *Writer) Size() int64 {
	return w.off
}

// Finish overwrites the placeholder with m and appends keys immediately
// after it.  If m doesn't fit in the reserved capacity nothing past the
// placeholder is written.  Finish may only be called once.
func Finish[K ondisk.Key](w *Writer, m preamble.Metadata, keys []K) error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		return errAlreadyFinished
	}
	if m.CapacityBytes != w.capacity {
		return fmt.Errorf("metadata capacity %d doesn't match the %d bytes reserved", m.CapacityBytes, w.capacity)
	}
	if width := ondisk.Width[K](); m.KeyWidth != width {
		return fmt.Errorf("metadata key width %d doesn't match %d-byte keys", m.KeyWidth, width)
	}
	if m.KeyCount != int64(len(keys)) {
		return fmt.Errorf("metadata key count %d doesn't match %d keys", m.KeyCount, len(keys))
	}

	header, err := preamble.Encode(m)
	if err != nil {
		return fmt.Errorf("preamble.Encode: %w", err)
	}
	if n, err := w.f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	} else if n != len(header) {
		return fmt.Errorf("f.WriteAt: short write of %d (wanted %d)", n, len(header))
	}

	bw := bufio.NewWriterSize(w.f, defaultBufferSize)
	n, err := ondisk.WriteKeys(bw, keys, m.ByteOrder)
	if err != nil {
		return fmt.Errorf("ondisk.WriteKeys: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	w.off += n

	return nil
}
