// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bytesutil

// TrimSpace returns s without leading and trailing ASCII whitespace (space,
// \t, \n, \v, \f, \r).  Unlike bytes.TrimSpace, multi-byte Unicode spaces are
// kept, so a line normalizes the same way regardless of its encoding.
//
// TrimSpace returns a subslice of s, not a copy.
func TrimSpace(s []byte) []byte {
	start := 0
	for start < len(s) && isASCIISpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isASCIISpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
