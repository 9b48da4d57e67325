// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package source

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t testing.TB, path string, contents string) {
	format, err := FormatFor(path)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := NewWriter(f, format)
	require.NoError(t, err)
	_, err = io.WriteString(w, contents)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func readAll(t testing.TB, r *Reader) []string {
	var lines []string
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
	return lines
}

func TestFormatFor(t *testing.T) {
	for path, expected := range map[string]Format{
		"list.txt.gz":  Gzip,
		"list.gz":      Gzip,
		"list.txt.zst": Zstd,
		"a.zstd":       Zstd,
		"b.lz4":        LZ4,
	} {
		format, err := FormatFor(path)
		require.NoError(t, err, path)
		require.Equal(t, expected, format, path)
	}

	for _, path := range []string{"list.txt", "list.gz.txt", "list", "list.bz2"} {
		_, err := FormatFor(path)
		require.ErrorIs(t, err, ErrUnsupported, path)
	}
}

func TestOpen_RoundTrip(t *testing.T) {
	const contents = "first line\nsecond\r\n\n  padded  \nno terminator"
	expected := []string{"first line\n", "second\r\n", "\n", "  padded  \n", "no terminator"}

	dir := t.TempDir()
	for _, name := range []string{"list.txt.gz", "list.txt.zst", "list.txt.lz4"} {
		path := filepath.Join(dir, name)
		writeSource(t, path, contents)

		r, err := Open(path)
		require.NoError(t, err, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), r.CompressedSize())

		assert.Equal(t, expected, readAll(t, r), name)
		// EOF is sticky
		_, err = r.Next()
		assert.Equal(t, io.EOF, err)

		require.NoError(t, r.Close())
		// multiple closes should be fine
		require.NoError(t, r.Close())
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.gz"))
	require.ErrorIs(t, err, ErrNotFound)

	plain := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(plain, []byte("a\nb\n"), 0644))
	_, err = Open(plain)
	require.ErrorIs(t, err, ErrUnsupported)

	dirWithSuffix := filepath.Join(dir, "dir.gz")
	require.NoError(t, os.Mkdir(dirWithSuffix, 0755))
	_, err = Open(dirWithSuffix)
	require.ErrorIs(t, err, ErrUnsupported)

	// right suffix, wrong contents
	notGzip := filepath.Join(dir, "fake.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte("definitely not gzip"), 0644))
	_, err = Open(notGzip)
	require.Error(t, err)
}

func TestReader_LongLines(t *testing.T) {
	long := strings.Repeat("x", 3*defaultBufferSize+17)
	contents := "short\n" + long + "\nafter\n"

	r := NewReader(bufio.NewReader(strings.NewReader(contents)))
	lines := readAll(t, r)
	require.Len(t, lines, 3)
	assert.Equal(t, "short\n", lines[0])
	assert.Equal(t, long+"\n", lines[1])
	assert.Equal(t, "after\n", lines[2])
	assert.Zero(t, r.CompressedSize())
	require.NoError(t, r.Close())
}

func TestNewWriter_Unsupported(t *testing.T) {
	_, err := NewWriter(io.Discard, Format(0))
	require.ErrorIs(t, err, ErrUnsupported)
}
