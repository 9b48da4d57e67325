// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk encodes and decodes the fixed-width key arrays that make up
// the body of an index file, and provides the sorted in-memory form used to
// answer lookups.
package ondisk

import (
	"fmt"
	"io"
	"unsafe"
)

const writeChunkSize = 64 * 1024

// Key is the in-memory representation of a Candidate Key.
type Key interface {
	~uint32 | ~uint64
}

// Width returns the encoded size in bytes of a K.
func Width[K Key]() int {
	var k K
	return int(unsafe.Sizeof(k))
}

// PutKeys encodes keys into dst, which must be at least len(keys)*Width[K]() long.
func PutKeys[K Key](dst []byte, keys []K, order ByteOrder) {
	if len(keys) == 0 {
		return
	}
	bo := order.binary()
	switch Width[K]() {
	case 4:
		_ = dst[len(keys)*4-1:]
		for i, k := range keys {
			bo.PutUint32(dst[i*4:i*4+4], uint32(k))
		}
	case 8:
		_ = dst[len(keys)*8-1:]
		for i, k := range keys {
			bo.PutUint64(dst[i*8:i*8+8], uint64(k))
		}
	}
}

// DecodeKeys decodes every key in src into a newly allocated slice.
func DecodeKeys[K Key](src []byte, order ByteOrder) ([]K, error) {
	width := Width[K]()
	if len(src)%width != 0 {
		return nil, fmt.Errorf("body length %d is not a multiple of the %d-byte key width", len(src), width)
	}
	keys := make([]K, len(src)/width)
	bo := order.binary()
	switch width {
	case 4:
		for i := range keys {
			keys[i] = K(bo.Uint32(src[i*4 : i*4+4]))
		}
	case 8:
		for i := range keys {
			keys[i] = K(bo.Uint64(src[i*8 : i*8+8]))
		}
	}
	return keys, nil
}

// WriteKeys encodes keys to w in bounded chunks, so the full encoded body is
// never materialized at once.
func WriteKeys[K Key](w io.Writer, keys []K, order ByteOrder) (int64, error) {
	width := Width[K]()
	perChunk := writeChunkSize / width
	buf := make([]byte, perChunk*width)

	var written int64
	for len(keys) > 0 {
		n := min(perChunk, len(keys))
		chunk := buf[:n*width]
		PutKeys(chunk, keys[:n], order)
		m, err := w.Write(chunk)
		written += int64(m)
		if err != nil {
			return written, fmt.Errorf("write: %w", err)
		} else if m != len(chunk) {
			return written, fmt.Errorf("short write of %d (wanted %d)", m, len(chunk))
		}
		keys = keys[n:]
	}
	return written, nil
}
