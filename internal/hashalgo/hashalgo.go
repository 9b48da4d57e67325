// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package hashalgo maps algorithm identifiers to the deterministic functions
// used to turn a normalized line into a fixed-width Candidate Key.
//
// Narrow (4-byte) algorithms halve the size of an index at the cost of a
// higher false-positive rate: for an index holding n keys, a random
// non-member query matches with probability of roughly n / 2^(8*width).
package hashalgo

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	oxxhash "github.com/OneOfOne/xxhash"
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-farm"
	"github.com/zeebo/blake3"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// Algorithm identifies a hash function and its output width.  The zero value
// is Invalid.
type Algorithm uint8

const (
	Invalid Algorithm = iota
	XXHash32
	XXHash64
	FarmHash32
	FarmHash64
	SHA256x32
	SHA256x64
	Blake3x32
	Blake3x64

	numAlgorithms
)

var names = [numAlgorithms]string{
	Invalid:    "invalid",
	XXHash32:   "xxhash32",
	XXHash64:   "xxhash64",
	FarmHash32: "farmhash32",
	FarmHash64: "farmhash64",
	SHA256x32:  "sha256_32",
	SHA256x64:  "sha256_64",
	Blake3x32:  "blake3_32",
	Blake3x64:  "blake3_64",
}

// All returns every supported algorithm, in declaration order.
func All() []Algorithm {
	algos := make([]Algorithm, 0, numAlgorithms-1)
	for a := Invalid + 1; a < numAlgorithms; a++ {
		algos = append(algos, a)
	}
	return algos
}

// Parse returns the Algorithm named by name.
func Parse(name string) (Algorithm, error) {
	for a := Invalid + 1; a < numAlgorithms; a++ {
		if names[a] == name {
			return a, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a > Invalid && a < numAlgorithms
}

func (a Algorithm) String() string {
	if a >= numAlgorithms {
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
	return names[a]
}

// Width returns the size in bytes of the keys a produces, or 0 if a is not valid.
func (a Algorithm) Width() int {
	switch a {
	case XXHash32, FarmHash32, SHA256x32, Blake3x32:
		return 4
	case XXHash64, FarmHash64, SHA256x64, Blake3x64:
		return 8
	default:
		return 0
	}
}

// Sum hashes b.  The result always fits in Width() bytes.  Sum panics if a is
// not valid; callers get Algorithms from Parse or the exported constants.
func (a Algorithm) Sum(b []byte) uint64 {
	switch a {
	case XXHash32:
		return uint64(oxxhash.Checksum32(b))
	case XXHash64:
		return xxhash.Sum64(b)
	case FarmHash32:
		return uint64(farm.Hash32(b))
	case FarmHash64:
		return farm.Hash64(b)
	case SHA256x32:
		d := sha256.Sum256(b)
		return uint64(lowUint32(d[:]))
	case SHA256x64:
		d := sha256.Sum256(b)
		return lowUint64(d[:])
	case Blake3x32:
		d := blake3.Sum256(b)
		return uint64(lowUint32(d[:]))
	case Blake3x64:
		d := blake3.Sum256(b)
		return lowUint64(d[:])
	default:
		panic(fmt.Sprintf("hashalgo: Sum called on %s", a))
	}
}

// lowUint32 returns the low 32 bits of digest read as a big-endian integer.
func lowUint32(digest []byte) uint32 {
	return binary.BigEndian.Uint32(digest[len(digest)-4:])
}

// lowUint64 returns the low 64 bits of digest read as a big-endian integer.
func lowUint64(digest []byte) uint64 {
	return binary.BigEndian.Uint64(digest[len(digest)-8:])
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return []byte(names[a]), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// FalsePositiveRate estimates the probability that a random string absent
// from an index of keyCount keys, each width bytes wide, is reported as
// present.
func FalsePositiveRate(keyCount int64, width int) float64 {
	if keyCount <= 0 || width <= 0 {
		return 0
	}
	rate := float64(keyCount) / math.Ldexp(1, 8*width)
	if rate > 1 {
		return 1
	}
	return rate
}
