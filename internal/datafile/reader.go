// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/preamble"
)

var ErrCorrupt = errors.New("corrupt index file")

// Reader is an open, validated index file.
type Reader struct {
	path     string
	f        *os.File
	meta     preamble.Metadata
	size     int64
	isClosed atomic.Bool
}

// Open decodes the preamble at path and checks that the body holds exactly
// the number of keys the preamble declares.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}

	stats, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	size := stats.Size()

	meta, err := preamble.Decode(f, size)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("preamble.Decode: %w", err)
	}

	if bodyLen := size - meta.CapacityBytes; bodyLen != meta.BodySize() {
		_ = f.Close()
		return nil, &preamble.SizeError{
			What:     fmt.Sprintf("body of %d %d-byte keys", meta.KeyCount, meta.KeyWidth),
			Expected: meta.BodySize(),
			Actual:   bodyLen,
			Err:      ErrCorrupt,
		}
	}

	return &Reader{
		path: path,
		f:    f,
		meta: meta,
		size: size,
	}, nil
}

func (r *Reader) Metadata() preamble.Metadata {
	return r.meta
}

func (r *Reader) Size() int64 {
	return r.size
}

// LoadKeys copies every key in the body of r onto the heap.  K must match the
// key width recorded in the preamble.
func LoadKeys[K ondisk.Key](r *Reader) ([]K, error) {
	if width := ondisk.Width[K](); width != r.meta.KeyWidth {
		return nil, fmt.Errorf("can't load %d-byte keys into %d-byte slots", r.meta.KeyWidth, width)
	}
	if r.meta.KeyCount == 0 {
		return []K{}, nil
	}

	data, err := unix.Mmap(int(r.f.Fd()), 0, int(r.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap(%s): %w", r.path, err)
	}
	defer func() {
		_ = unix.Munmap(data)
	}()

	// we touch every page exactly once, front to back
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil {
		return nil, fmt.Errorf("madvise: %s", err)
	}

	keys, err := ondisk.DecodeKeys[K](data[r.meta.CapacityBytes:], r.meta.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("ondisk.DecodeKeys: %w", err)
	}
	return keys, nil
}

func (r *Reader) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	return r.f.Close()
}
