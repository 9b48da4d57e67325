// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package source streams lines out of compressed candidate lists.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const defaultBufferSize = 1024 * 1024

var (
	ErrUnsupported = errors.New("unsupported source format")
	ErrNotFound    = errors.New("source not found")
)

// Format is the compression used by a candidate list, chosen by file suffix.
type Format uint8

const (
	Gzip Format = iota + 1
	Zstd
	LZ4
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".gz", Gzip},
	{".zst", Zstd},
	{".zstd", Zstd},
	{".lz4", LZ4},
}

// FormatFor returns the Format implied by path's extension.
func FormatFor(path string) (Format, error) {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s.suffix) {
			return s.format, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (expected .gz, .zst or .lz4)", ErrUnsupported, path)
}

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Reader yields the raw lines of a candidate list, terminators included.
type Reader struct {
	f              *os.File
	closeDecoder   func() error
	br             *bufio.Reader
	long           []byte
	compressedSize int64
}

// Check validates path as a source without opening a decoder.
func Check(path string) (Format, int64, error) {
	format, err := FormatFor(path)
	if err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return 0, 0, fmt.Errorf("os.Stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, 0, fmt.Errorf("%w: %s is not a regular file", ErrUnsupported, path)
	}
	return format, info.Size(), nil
}

// Open validates and opens the compressed list at path.
func Open(path string) (*Reader, error) {
	format, size, err := Check(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}

	var (
		dec          io.Reader
		closeDecoder = func() error { return nil }
	)
	switch format {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip.NewReader(%s): %w", path, err)
		}
		dec, closeDecoder = zr, zr.Close
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd.NewReader(%s): %w", path, err)
		}
		dec = zr
		closeDecoder = func() error {
			zr.Close()
			return nil
		}
	case LZ4:
		dec = lz4.NewReader(f)
	}

	return &Reader{
		f:              f,
		closeDecoder:   closeDecoder,
		br:             bufio.NewReaderSize(dec, defaultBufferSize),
		compressedSize: size,
	}, nil
}

// NewReader reads lines from an already-decoded stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		closeDecoder: func() error { return nil },
		br:           bufio.NewReaderSize(r, defaultBufferSize),
	}
}

// CompressedSize is the on-disk size of the source, or 0 for NewReader.
func (r *Reader) CompressedSize() int64 {
	return r.compressedSize
}

// Next returns the next line including its terminator, or io.EOF.  The
// returned slice is only valid until the next call.
func (r *Reader) Next() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		r.long = append(r.long[:0], line...)
		for errors.Is(err, bufio.ErrBufferFull) {
			line, err = r.br.ReadSlice('\n')
			r.long = append(r.long, line...)
		}
		line = r.long
	}
	if errors.Is(err, io.EOF) && len(line) > 0 {
		// final line without a terminator
		return line, nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return line, nil
}

func (r *Reader) Close() error {
	err := r.closeDecoder()
	r.closeDecoder = func() error { return nil }
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}

// NewWriter compresses everything written to w using format.  Closing the
// returned writer flushes it but does not close w.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewWriter: %w", err)
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}
