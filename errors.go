// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package seen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bpowers/seen/internal/datafile"
	"github.com/bpowers/seen/internal/hashalgo"
	"github.com/bpowers/seen/internal/preamble"
	"github.com/bpowers/seen/internal/source"
)

var (
	// ErrUnsupportedAlgorithm is returned for unknown hash algorithm identifiers.
	ErrUnsupportedAlgorithm = hashalgo.ErrUnsupportedAlgorithm
	// ErrUnsupportedSource is returned for sources without a .gz, .zst or .lz4
	// extension, or that aren't regular files.
	ErrUnsupportedSource = source.ErrUnsupported
	// ErrSourceNotFound is returned when the source path doesn't exist.
	ErrSourceNotFound = source.ErrNotFound
	// ErrCorruptPreamble is returned when an index file's metadata can't be
	// located, parsed, or fails its capacity round-trip check.
	ErrCorruptPreamble = preamble.ErrCorrupt
	// ErrCorruptArtifact is returned when the key array doesn't match the
	// size the metadata declares.
	ErrCorruptArtifact = datafile.ErrCorrupt
	// ErrCapacityOverflow is returned when the encoded metadata doesn't fit
	// in the space reserved for it.
	ErrCapacityOverflow = preamble.ErrCapacityOverflow
)

// Kind categorizes a failure.
type Kind uint8

const (
	// KindIO covers failures reading or writing files.
	KindIO Kind = iota + 1
	// KindValidation covers bad inputs, detected before the destination is touched.
	KindValidation
	// KindCorruption covers index files that fail validation on open.
	KindCorruption
	// KindCapacityOverflow covers metadata too large for its reserved block.
	KindCapacityOverflow
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	case KindCorruption:
		return "corruption"
	case KindCapacityOverflow:
		return "capacity overflow"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the type of every error returned by Build, Open, and Search.
//
// The underlying error can be matched with errors.Is against the Err*
// variables in this package.
type Error struct {
	Kind Kind
	Op   string
	Path string
	// Expected and Actual are byte counts, set for size mismatches.
	Expected int64
	Actual   int64
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Path)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	out := &Error{
		Kind: KindIO,
		Op:   op,
		Path: path,
		Err:  err,
	}
	switch {
	case errors.Is(err, ErrUnsupportedAlgorithm),
		errors.Is(err, ErrUnsupportedSource),
		errors.Is(err, ErrSourceNotFound):
		out.Kind = KindValidation
	case errors.Is(err, ErrCorruptPreamble), errors.Is(err, ErrCorruptArtifact):
		out.Kind = KindCorruption
	case errors.Is(err, ErrCapacityOverflow):
		out.Kind = KindCapacityOverflow
	}

	var sizeErr *preamble.SizeError
	if errors.As(err, &sizeErr) {
		out.Expected = sizeErr.Expected
		out.Actual = sizeErr.Actual
	}
	return out
}

func validationError(op, path string, err error) error {
	return &Error{
		Kind: KindValidation,
		Op:   op,
		Path: path,
		Err:  err,
	}
}
