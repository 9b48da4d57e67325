// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/seen/internal/hashalgo"
	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/preamble"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (s *safeBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.buf...)
}

func (s *safeBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *safeBuffer) WriteAt(p []byte, off int64) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(off)+len(p) > len(s.buf) {
		return 0, errors.New("writeAt out of bounds")
	}

	return copy(s.buf[off:int(off)+len(p)], p), nil
}

var _ FileWriter = &safeBuffer{}

type testWriter struct {
	inner            FileWriter
	writeShouldError bool
}

func (c *testWriter) Write(p []byte) (n int, err error) {
	if c.writeShouldError {
		return 0, errors.New("write failed")
	}
	return c.inner.Write(p)
}

func (c *testWriter) WriteAt(p []byte, off int64) (n int, err error) {
	if c.writeShouldError {
		return 0, errors.New("write failed")
	}
	return c.inner.WriteAt(p, off)
}

var _ FileWriter = &testWriter{}

func testMetadata(algo hashalgo.Algorithm, n int) preamble.Metadata {
	m := preamble.New(algo)
	m.Sorted = true
	m.KeyCount = int64(n)
	m.ArtifactSizeBytes = m.CapacityBytes + m.BodySize()
	return m
}

func writeFile(t testing.TB, contents []byte) string {
	path := filepath.Join(t.TempDir(), "test.seen")
	require.NoError(t, os.WriteFile(path, contents, 0444))
	return path
}

func TestNewWriter_Errors(t *testing.T) {
	var fileBytes safeBuffer
	writer := &testWriter{
		inner:            &fileBytes,
		writeShouldError: true,
	}

	_, err := NewWriter(writer, preamble.DefaultCapacity)
	assert.Error(t, err)

	// too small to hold the placeholder
	_, err = NewWriter(&fileBytes, 8)
	assert.Error(t, err)
}

func TestWriter_Placeholder(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes, preamble.DefaultCapacity)
	require.NoError(t, err)
	require.Equal(t, int64(preamble.DefaultCapacity), w.Size())
	require.Equal(t, int64(preamble.DefaultCapacity), w.Capacity())

	// an unfinished file must not decode
	contents := fileBytes.Bytes()
	require.Len(t, contents, preamble.DefaultCapacity)
	_, err = preamble.Decode(bytes.NewReader(contents), int64(len(contents)))
	require.ErrorIs(t, err, preamble.ErrCorrupt)
}

func TestWriter_RoundTrip(t *testing.T) {
	for _, order := range []ondisk.ByteOrder{ondisk.LittleEndian, ondisk.BigEndian} {
		var fileBytes safeBuffer

		w, err := NewWriter(&fileBytes, preamble.DefaultCapacity)
		require.NoError(t, err)

		keys := make([]uint64, 1000)
		for i := range keys {
			keys[i] = uint64(i) * 2654435761
		}
		m := testMetadata(hashalgo.XXHash64, len(keys))
		m.ByteOrder = order
		require.NoError(t, Finish(w, m, keys))
		// multiple finishes are an error
		require.Error(t, Finish(w, m, keys))

		contents := fileBytes.Bytes()
		require.Equal(t, int64(len(contents)), w.Size())
		require.Equal(t, int64(preamble.DefaultCapacity+8*len(keys)), w.Size())

		r, err := Open(writeFile(t, contents))
		require.NoError(t, err)
		assert.Equal(t, m, r.Metadata())
		assert.Equal(t, int64(len(contents)), r.Size())

		loaded, err := LoadKeys[uint64](r)
		require.NoError(t, err)
		require.Equal(t, keys, loaded)

		// wrong key width
		_, err = LoadKeys[uint32](r)
		require.Error(t, err)

		require.NoError(t, r.Close())
		// should be safe for multiple closes
		require.NoError(t, r.Close())
	}
}

func TestWriter_NarrowKeys(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes, preamble.DefaultCapacity)
	require.NoError(t, err)

	keys := []uint32{1, 2, 0xdeadbeef}
	m := testMetadata(hashalgo.XXHash32, len(keys))
	require.NoError(t, Finish(w, m, keys))

	contents := fileBytes.Bytes()
	body := contents[preamble.DefaultCapacity:]
	require.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}, body)

	r, err := Open(writeFile(t, contents))
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()
	loaded, err := LoadKeys[uint32](r)
	require.NoError(t, err)
	require.Equal(t, keys, loaded)
}

func TestWriter_Empty(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes, preamble.DefaultCapacity)
	require.NoError(t, err)
	require.NoError(t, Finish(w, testMetadata(hashalgo.FarmHash64, 0), []uint64{}))

	r, err := Open(writeFile(t, fileBytes.Bytes()))
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()
	loaded, err := LoadKeys[uint64](r)
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestFinish_Errors(t *testing.T) {
	newWriter := func() (*safeBuffer, *Writer) {
		var fileBytes safeBuffer
		w, err := NewWriter(&fileBytes, 128)
		require.NoError(t, err)
		return &fileBytes, w
	}

	// metadata bigger than the reserved capacity: nothing past the placeholder is written
	fileBytes, w := newWriter()
	m := testMetadata(hashalgo.XXHash64, 2)
	m.CapacityBytes = 128
	err := Finish(w, m, []uint64{1, 2})
	require.ErrorIs(t, err, preamble.ErrCapacityOverflow)
	require.Len(t, fileBytes.Bytes(), 128)

	// capacity mismatch
	_, w = newWriter()
	err = Finish(w, testMetadata(hashalgo.XXHash64, 2), []uint64{1, 2})
	require.Error(t, err)

	// width mismatch
	_, w = newWriter()
	m = testMetadata(hashalgo.XXHash32, 2)
	m.CapacityBytes = 128
	err = Finish(w, m, []uint64{1, 2})
	require.Error(t, err)

	// count mismatch
	_, w = newWriter()
	m = testMetadata(hashalgo.XXHash64, 3)
	m.CapacityBytes = 128
	err = Finish(w, m, []uint64{1, 2})
	require.Error(t, err)
}

func TestReader_Errors(t *testing.T) {
	_, err := Open("/doesnt/exist")
	assert.Error(t, err)

	_, err = Open("/dev/null")
	assert.ErrorIs(t, err, preamble.ErrCorrupt)

	var fileBytes safeBuffer
	w, err := NewWriter(&fileBytes, preamble.DefaultCapacity)
	require.NoError(t, err)
	keys := []uint64{1, 2, 3}
	require.NoError(t, Finish(w, testMetadata(hashalgo.XXHash64, len(keys)), keys))
	contents := fileBytes.Bytes()

	// truncated body
	_, err = Open(writeFile(t, contents[:len(contents)-3]))
	require.ErrorIs(t, err, ErrCorrupt)
	var sizeErr *preamble.SizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(24), sizeErr.Expected)
	assert.Equal(t, int64(21), sizeErr.Actual)

	// trailing garbage
	_, err = Open(writeFile(t, append(contents, 0, 0, 0, 0, 0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrCorrupt)

	// abandoned mid-build
	_, err = Open(writeFile(t, contents[:preamble.DefaultCapacity/2]))
	require.ErrorIs(t, err, preamble.ErrCorrupt)
}
