// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package seen

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bpowers/seen/internal/bytesutil"
	"github.com/bpowers/seen/internal/datafile"
	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/preamble"
	"github.com/bpowers/seen/internal/source"
)

const (
	// DefaultMinLineLength is the shortest raw line, terminator included,
	// that is hashed.  Shorter lines are skipped.
	DefaultMinLineLength = 5
	// DefaultBatchSize is the number of keys buffered before they are
	// moved into the backing key array.
	DefaultBatchSize = 1_000_000

	defaultProgressInterval = 1_000_000
)

var errBuilderFinished = errors.New("builder already finalized")

// BuildOption configures Build, BuildFromReader and NewBuilder.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger           *slog.Logger
	minLineLen       int
	batchSize        int
	capacity         int64
	order            ByteOrder
	progressInterval int64
}

func defaultBuildOptions() buildOptions {
	return buildOptions{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		minLineLen:       DefaultMinLineLength,
		batchSize:        DefaultBatchSize,
		capacity:         DefaultPreambleCapacity,
		order:            LittleEndian,
		progressInterval: defaultProgressInterval,
	}
}

// WithBuildLogger sets an optional logger for the builder to use for progress updates.
// If not provided, no logging output will be produced.
func WithBuildLogger(logger *slog.Logger) BuildOption {
	return func(opts *buildOptions) {
		opts.logger = logger
	}
}

// WithMinLineLength sets the shortest raw line (terminator included) that is
// indexed; shorter lines are skipped with a warning.
func WithMinLineLength(n int) BuildOption {
	return func(opts *buildOptions) {
		opts.minLineLen = n
	}
}

// WithBatchSize sets how many keys are buffered between flushes into the
// backing key array.
func WithBatchSize(n int) BuildOption {
	return func(opts *buildOptions) {
		opts.batchSize = max(n, 1)
	}
}

// WithPreambleCapacity sets the number of bytes reserved for metadata.
func WithPreambleCapacity(n int64) BuildOption {
	return func(opts *buildOptions) {
		opts.capacity = n
	}
}

// WithByteOrder sets the endianness keys are written in.
func WithByteOrder(order ByteOrder) BuildOption {
	return func(opts *buildOptions) {
		opts.order = order
	}
}

// WithProgressInterval logs progress every n accepted lines; 0 disables it.
func WithProgressInterval(n int64) BuildOption {
	return func(opts *buildOptions) {
		opts.progressInterval = n
	}
}

// BuildStats summarizes a completed build.
type BuildStats struct {
	Metadata              Metadata
	KeyCount              int64
	SkippedLines          int64
	DuplicateKeys         int64
	SourceBytesRead       int64
	SourceCompressedBytes int64
	ArtifactBytes         int64
	Duration              time.Duration
}

// buildState accumulates while lines stream in.  It belongs to exactly one
// Builder and is turned into Metadata once, by finalize.
type buildState struct {
	accepted       int64
	skipped        int64
	bytesRead      int64
	compressedSize int64
	started        time.Time
}

// keyBuffer hides the key width from the Builder.
type keyBuffer interface {
	add(h uint64)
	count() int64
	// sort flushes any pending batch, sorts all keys and returns the number
	// of adjacent duplicates.
	sort() int64
	write(w *datafile.Writer, m Metadata) error
}

type batchedKeys[K ondisk.Key] struct {
	keys  []K
	batch []K
}

func newKeyBuffer(width, batchSize int) keyBuffer {
	if width == 4 {
		return &batchedKeys[uint32]{batch: make([]uint32, 0, batchSize)}
	}
	return &batchedKeys[uint64]{batch: make([]uint64, 0, batchSize)}
}

func (b *batchedKeys[K]) add(h uint64) {
	b.batch = append(b.batch, K(h))
	if len(b.batch) == cap(b.batch) {
		b.flush()
	}
}

func (b *batchedKeys[K]) flush() {
	b.keys = append(b.keys, b.batch...)
	b.batch = b.batch[:0]
}

func (b *batchedKeys[K]) count() int64 {
	return int64(len(b.keys) + len(b.batch))
}

func (b *batchedKeys[K]) sort() int64 {
	b.flush()
	b.batch = nil
	slices.Sort(b.keys)
	return ondisk.CountDuplicates(b.keys)
}

func (b *batchedKeys[K]) write(w *datafile.Writer, m Metadata) error {
	return datafile.Finish(w, m, b.keys)
}

// Builder is used to construct an immutable index from lines of text.
type Builder struct {
	resultPath string
	tmpPath    string
	dataFile   *os.File
	w          *datafile.Writer
	algo       Algorithm
	keys       keyBuffer
	state      buildState
	opts       buildOptions
	logger     *slog.Logger
	finished   bool
}

// NewBuilder creates a Builder that writes an index to dstPath.  Nothing
// appears at dstPath until Finalize succeeds: the index is built in a
// temporary file in the same directory and renamed into place.
func NewBuilder(dstPath string, algo Algorithm, opts ...BuildOption) (*Builder, error) {
	options := defaultBuildOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := validateBuild(dstPath, algo, &options); err != nil {
		return nil, err
	}
	return newBuilder(dstPath, algo, options)
}

func validateBuild(dstPath string, algo Algorithm, options *buildOptions) error {
	if !algo.Valid() {
		return validationError("build", dstPath, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algo))
	}
	if !options.order.Valid() {
		return validationError("build", dstPath, fmt.Errorf("%w: %s", ondisk.ErrUnknownByteOrder, options.order))
	}
	if options.capacity < preamble.MinCapacity || options.capacity > preamble.MaxCapacity {
		return validationError("build", dstPath, fmt.Errorf("preamble capacity %d outside [%d, %d]", options.capacity, preamble.MinCapacity, preamble.MaxCapacity))
	}
	return nil
}

func newBuilder(dstPath string, algo Algorithm, options buildOptions) (*Builder, error) {
	// we want to write to a new file and do an atomic rename when we're done on disk
	dataFilePath, err := filepath.Abs(dstPath)
	if err != nil {
		return nil, translateError("build", dstPath, fmt.Errorf("filepath.Abs: %w", err))
	}
	dir := filepath.Dir(dataFilePath)
	dataFile, err := os.CreateTemp(dir, "seen-builder.*.tmp")
	if err != nil {
		return nil, translateError("build", dstPath, fmt.Errorf("CreateTemp failed (may need permissions for dir %q containing dstPath): %w", dir, err))
	}
	w, err := datafile.NewWriter(dataFile, options.capacity)
	if err != nil {
		_ = dataFile.Close()
		_ = os.Remove(dataFile.Name())
		return nil, translateError("build", dstPath, fmt.Errorf("datafile.NewWriter: %w", err))
	}
	return &Builder{
		resultPath: dataFilePath,
		tmpPath:    dataFile.Name(),
		dataFile:   dataFile,
		w:          w,
		algo:       algo,
		keys:       newKeyBuffer(algo.Width(), options.batchSize),
		state:      buildState{started: time.Now()},
		opts:       options,
		logger:     options.logger,
	}, nil
}

// Add hashes one raw line of input.  Lines shorter than the minimum line
// length are skipped; the rest are trimmed of surrounding ASCII whitespace
// before hashing.
func (b *Builder) Add(line []byte) error {
	if b.finished {
		return errBuilderFinished
	}
	if len(line) < b.opts.minLineLen {
		b.state.skipped++
		b.logger.Warn("skipping short line", "line", string(line))
		return nil
	}

	b.keys.add(b.algo.Sum(bytesutil.TrimSpace(line)))
	b.state.accepted++
	b.state.bytesRead += int64(len(line))

	if b.opts.progressInterval > 0 && b.state.accepted%b.opts.progressInterval == 0 {
		b.logger.Info("ingesting",
			"keys", b.state.accepted,
			"read", humanize.Bytes(uint64(b.state.bytesRead)))
	}
	return nil
}

// Finalize sorts the keys, writes the index and moves it to its destination.
// On failure the temporary file is removed and nothing is left at the
// destination.
func (b *Builder) Finalize() (BuildStats, error) {
	if b.finished {
		return BuildStats{}, translateError("build", b.resultPath, errBuilderFinished)
	}
	b.finished = true

	stats, err := b.finalize()
	if err != nil {
		b.cleanup()
		return BuildStats{}, translateError("build", b.resultPath, err)
	}
	return stats, nil
}

func (b *Builder) finalize() (BuildStats, error) {
	b.logger.Info("finished reading source",
		"keys", b.state.accepted,
		"skipped", b.state.skipped,
		"read", humanize.Bytes(uint64(b.state.bytesRead)))

	dups := b.keys.sort()
	if dups > 0 {
		b.logger.Info("found duplicate keys", "count", dups)
	}
	b.logger.Info("sorted keys", "count", b.keys.count())

	m := Metadata{
		CapacityBytes:         b.w.Capacity(),
		Algorithm:             b.algo,
		KeyWidth:              b.algo.Width(),
		ByteOrder:             b.opts.order,
		Sorted:                true,
		KeyCount:              b.keys.count(),
		SourceBytesRead:       b.state.bytesRead,
		SourceCompressedBytes: b.state.compressedSize,
	}
	m.ArtifactSizeBytes = m.CapacityBytes + m.BodySize()

	b.logger.Debug("writing preamble", "metadata", m)
	if err := b.keys.write(b.w, m); err != nil {
		return BuildStats{}, fmt.Errorf("datafile.Finish: %w", err)
	}
	if b.w.Size() != m.ArtifactSizeBytes {
		return BuildStats{}, fmt.Errorf("invariant broken: wrote %d bytes, expected %d", b.w.Size(), m.ArtifactSizeBytes)
	}

	if err := b.dataFile.Sync(); err != nil {
		return BuildStats{}, fmt.Errorf("f.Sync: %w", err)
	}
	if err := b.dataFile.Close(); err != nil {
		return BuildStats{}, fmt.Errorf("f.Close: %w", err)
	}
	b.dataFile = nil

	// make the file read-only
	if err := os.Chmod(b.tmpPath, 0444); err != nil {
		return BuildStats{}, fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(b.tmpPath, b.resultPath); err != nil {
		return BuildStats{}, fmt.Errorf("os.Rename: %w", err)
	}
	b.tmpPath = ""

	stats := BuildStats{
		Metadata:              m,
		KeyCount:              m.KeyCount,
		SkippedLines:          b.state.skipped,
		DuplicateKeys:         dups,
		SourceBytesRead:       m.SourceBytesRead,
		SourceCompressedBytes: m.SourceCompressedBytes,
		ArtifactBytes:         m.ArtifactSizeBytes,
		Duration:              time.Since(b.state.started),
	}
	b.logger.Info("wrote index",
		"path", b.resultPath,
		"keys", stats.KeyCount,
		"size", humanize.Bytes(uint64(stats.ArtifactBytes)),
		"duration", stats.Duration)
	return stats, nil
}

// Abort discards a build in progress.  It is safe to call after Finalize.
func (b *Builder) Abort() {
	b.finished = true
	b.cleanup()
}

func (b *Builder) cleanup() {
	if b.dataFile != nil {
		_ = b.dataFile.Close()
		b.dataFile = nil
	}
	if b.tmpPath != "" {
		_ = os.Remove(b.tmpPath)
		b.tmpPath = ""
	}
}

// Build creates an index at dstPath from the compressed, line-oriented list
// at srcPath (.gz, .zst or .lz4), hashing every line with algo.
//
// Inputs are validated before anything is written.  The hashed keys of the
// whole source must fit in memory; the source itself is streamed.
func Build(srcPath, dstPath string, algo Algorithm, opts ...BuildOption) (BuildStats, error) {
	options := defaultBuildOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := validateBuild(dstPath, algo, &options); err != nil {
		return BuildStats{}, err
	}
	src, err := source.Open(srcPath)
	if err != nil {
		return BuildStats{}, translateError("build", srcPath, err)
	}
	defer func() {
		_ = src.Close()
	}()

	b, err := newBuilder(dstPath, algo, options)
	if err != nil {
		return BuildStats{}, err
	}
	b.state.compressedSize = src.CompressedSize()
	b.logger.Info("building index",
		"source", srcPath,
		"compressed", humanize.Bytes(uint64(src.CompressedSize())),
		"dest", b.resultPath,
		"algorithm", algo)

	return b.ingest(srcPath, src)
}

// BuildFromReader is like Build, but reads already-decompressed lines from r.
func BuildFromReader(r io.Reader, dstPath string, algo Algorithm, opts ...BuildOption) (BuildStats, error) {
	b, err := NewBuilder(dstPath, algo, opts...)
	if err != nil {
		return BuildStats{}, err
	}
	return b.ingest("", source.NewReader(r))
}

func (b *Builder) ingest(srcPath string, src *source.Reader) (BuildStats, error) {
	for {
		line, err := src.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			b.Abort()
			return BuildStats{}, translateError("build", srcPath, err)
		}
		if err := b.Add(line); err != nil {
			b.Abort()
			return BuildStats{}, translateError("build", b.resultPath, err)
		}
	}
	return b.Finalize()
}
