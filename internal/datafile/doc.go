// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package datafile writes and reads index files: a fixed-capacity preamble
// describing the file, followed by an array of fixed-width keys.
//
// An index file looks like:
//
//	┌───────────────────┐ 0
//	│ preamble (JSON)   │
//	│ zero padding      │
//	├───────────────────┤ preamble_length_bytes
//	│ key 0             │
//	│ key 1             │
//	│ ...               │
//	│ key num_hashes-1  │
//	└───────────────────┘ preamble_length_bytes + num_hashes*hash_size_bytes
//
// Keys are unsigned integers hash_size_bytes (4 or 8) wide, stored in the
// endianness named by the preamble's "endian" field, and are ascending when
// "is_sorted" is true.  Readers never rely on that flag.
//
// While a file is being built the preamble region holds a placeholder that
// doesn't decode, so a file abandoned mid-build can't be mistaken for a valid
// one.
package datafile
