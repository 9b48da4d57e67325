// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package seen

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/seen/internal/preamble"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "io", KindIO.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "corruption", KindCorruption.String())
	assert.Equal(t, "capacity overflow", KindCapacityOverflow.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestTranslateError(t *testing.T) {
	require.NoError(t, translateError("open", "x", nil))

	for _, tc := range []struct {
		err  error
		kind Kind
	}{
		{fmt.Errorf("parse: %w", ErrUnsupportedAlgorithm), KindValidation},
		{fmt.Errorf("check: %w", ErrUnsupportedSource), KindValidation},
		{fmt.Errorf("check: %w", ErrSourceNotFound), KindValidation},
		{fmt.Errorf("decode: %w", ErrCorruptPreamble), KindCorruption},
		{fmt.Errorf("open: %w", ErrCorruptArtifact), KindCorruption},
		{fmt.Errorf("encode: %w", ErrCapacityOverflow), KindCapacityOverflow},
		{fmt.Errorf("os.Open: %w", os.ErrPermission), KindIO},
	} {
		err := translateError("op", "/some/path", tc.err)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, tc.kind, e.Kind, tc.err.Error())
		assert.Equal(t, "op", e.Op)
		assert.Equal(t, "/some/path", e.Path)
		assert.ErrorIs(t, err, errors.Unwrap(tc.err))
		assert.True(t, IsKind(err, tc.kind))
	}
}

func TestTranslateError_Sizes(t *testing.T) {
	inner := fmt.Errorf("datafile.Open: %w", &preamble.SizeError{
		What:     "body",
		Expected: 24,
		Actual:   21,
		Err:      ErrCorruptArtifact,
	})
	err := translateError("open", "idx.seen", inner)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindCorruption, e.Kind)
	assert.Equal(t, int64(24), e.Expected)
	assert.Equal(t, int64(21), e.Actual)
	assert.Equal(t, "open idx.seen: "+inner.Error(), err.Error())
}

func TestTranslateError_AlreadyTranslated(t *testing.T) {
	first := validationError("build", "a", ErrUnsupportedAlgorithm)
	second := translateError("open", "b", fmt.Errorf("wrapped: %w", first))
	var e *Error
	require.ErrorAs(t, second, &e)
	assert.Equal(t, "build", e.Op)
	assert.Equal(t, "a", e.Path)
	assert.False(t, IsKind(errors.New("plain"), KindIO))
}
