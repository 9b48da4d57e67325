// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package seen

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bpowers/seen/internal/bytesutil"
	"github.com/bpowers/seen/internal/datafile"
	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/unsafestring"
)

// OpenOption configures Open and Search.
type OpenOption func(*openOptions)

type openOptions struct {
	logger *slog.Logger
}

// WithTableLogger sets an optional logger for lookups and loading.  If not
// provided, no logging output will be produced.
func WithTableLogger(logger *slog.Logger) OpenOption {
	return func(opts *openOptions) {
		opts.logger = logger
	}
}

// keyIndex hides the key width from Table.
type keyIndex interface {
	Find(h uint64) (int, bool)
	Len() int
}

// Table is a loaded index.  It is immutable and safe for concurrent use.
type Table struct {
	path   string
	meta   Metadata
	keys   keyIndex
	logger *slog.Logger
}

// Open validates the index at path and loads its keys into memory.  Keys are
// sorted on load, so indexes written unsorted are searchable too.
func Open(path string, opts ...OpenOption) (*Table, error) {
	options := openOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	r, err := datafile.Open(path)
	if err != nil {
		return nil, translateError("open", path, err)
	}
	defer func() {
		_ = r.Close()
	}()

	m := r.Metadata()
	options.logger.Debug("decoded preamble", "path", path, "metadata", m)

	var keys keyIndex
	switch m.KeyWidth {
	case 4:
		keys, err = loadSorted[uint32](r)
	case 8:
		keys, err = loadSorted[uint64](r)
	default:
		err = fmt.Errorf("%w: unsupported key width %d", ErrCorruptPreamble, m.KeyWidth)
	}
	if err != nil {
		return nil, translateError("open", path, err)
	}

	options.logger.Info("loaded index",
		"path", path,
		"keys", keys.Len(),
		"algorithm", m.Algorithm,
		"size", humanize.Bytes(uint64(r.Size())),
		"duration", time.Since(start))

	return &Table{
		path:   path,
		meta:   m,
		keys:   keys,
		logger: options.logger,
	}, nil
}

func loadSorted[K ondisk.Key](r *datafile.Reader) (keyIndex, error) {
	keys, err := datafile.LoadKeys[K](r)
	if err != nil {
		return nil, fmt.Errorf("datafile.LoadKeys: %w", err)
	}
	return ondisk.NewSorted(keys), nil
}

// Lookup normalizes query the same way lines are normalized when building and
// returns the position of its key in the sorted key array.  A position of 0
// is a valid match.
func (t *Table) Lookup(query string) (int, bool) {
	h := t.meta.Algorithm.Sum(bytesutil.TrimSpace(unsafestring.ToBytes(query)))
	return t.keys.Find(h)
}

// Contains reports whether query is probably in the index.
func (t *Table) Contains(query string) bool {
	_, ok := t.Lookup(query)
	return ok
}

// Search returns the queries that are probably in the index, in the order
// they were given.  Queries are returned as given, not normalized.
func (t *Table) Search(queries []string) []string {
	var found []string
	for _, q := range queries {
		if i, ok := t.Lookup(q); ok {
			t.logger.Debug("found", "query", q, "index", i)
			found = append(found, q)
		} else {
			t.logger.Debug("not found", "query", q)
		}
	}
	return found
}

// Metadata returns the preamble the index was opened with.
func (t *Table) Metadata() Metadata {
	return t.meta
}

// Len is the number of keys in the index, duplicates included.
func (t *Table) Len() int {
	return t.keys.Len()
}

// FalsePositiveRate estimates the chance that a string absent from the index
// is reported as present.
func (t *Table) FalsePositiveRate() float64 {
	return FalsePositiveRate(t.meta)
}

// Close does nothing: Open closes the index file once its keys are loaded,
// and lookups keep working after Close.
func (t *Table) Close() error {
	return nil
}

// Search opens the index at path and returns which of queries it probably
// contains, in query order.
func Search(path string, queries []string, opts ...OpenOption) ([]string, error) {
	t, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = t.Close()
	}()
	return t.Search(queries), nil
}
