// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package seen builds and queries compact, read-only indexes that answer
// "has this string been seen before?" over very large candidate lists.
//
// An index stores a fixed-width hash of every line of a compressed source
// list, never the lines themselves.  Build streams the source, hashes and
// sorts the keys, and writes them after a self-describing metadata block.
// Open loads the keys back into memory, and Table answers exact-match
// queries with a binary search.
//
// Because keys are hashes, a match means "probably present": with n keys of
// w bytes each, a string that was never added is reported present with
// probability of about n / 2^(8*w).  Strings that were added are always
// found.
package seen

import (
	"github.com/bpowers/seen/internal/hashalgo"
	"github.com/bpowers/seen/internal/ondisk"
	"github.com/bpowers/seen/internal/preamble"
)

// Algorithm identifies the hash function used to derive keys.
type Algorithm = hashalgo.Algorithm

const (
	XXHash32   = hashalgo.XXHash32
	XXHash64   = hashalgo.XXHash64
	FarmHash32 = hashalgo.FarmHash32
	FarmHash64 = hashalgo.FarmHash64
	SHA256x32  = hashalgo.SHA256x32
	SHA256x64  = hashalgo.SHA256x64
	Blake3x32  = hashalgo.Blake3x32
	Blake3x64  = hashalgo.Blake3x64
)

// ByteOrder is the endianness keys are stored in.
type ByteOrder = ondisk.ByteOrder

const (
	LittleEndian = ondisk.LittleEndian
	BigEndian    = ondisk.BigEndian
)

// Metadata is the self-describing header at the start of every index file.
type Metadata = preamble.Metadata

// DefaultPreambleCapacity is the number of bytes reserved for Metadata.
const DefaultPreambleCapacity = preamble.DefaultCapacity

// ParseAlgorithm returns the Algorithm with the given name, e.g. "xxhash64".
func ParseAlgorithm(name string) (Algorithm, error) {
	return hashalgo.Parse(name)
}

// Algorithms lists every supported Algorithm.
func Algorithms() []Algorithm {
	return hashalgo.All()
}

// FalsePositiveRate estimates the chance that a string absent from an index
// described by m is reported as present.
func FalsePositiveRate(m Metadata) float64 {
	return hashalgo.FalsePositiveRate(m.KeyCount, m.KeyWidth)
}
