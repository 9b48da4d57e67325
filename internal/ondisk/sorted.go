// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ondisk

import (
	"slices"
)

// Sorted is an ascending array of keys supporting exact-match lookups.  It is
// immutable after construction and safe for concurrent readers.
type Sorted[K Key] struct {
	keys []K
}

// NewSorted sorts keys in place and takes ownership of the slice.  Keys are
// always re-sorted: a sorted flag stored alongside them is only a hint.
func NewSorted[K Key](keys []K) *Sorted[K] {
	slices.Sort(keys)
	return &Sorted[K]{keys: keys}
}

// Find returns the index of the leftmost key equal to h.
func (s *Sorted[K]) Find(h uint64) (int, bool) {
	k := K(h)
	if uint64(k) != h {
		// h can't be represented in this width, so it can't be present
		return 0, false
	}
	return slices.BinarySearch(s.keys, k)
}

func (s *Sorted[K]) Len() int {
	return len(s.keys)
}

// Keys returns the underlying array; it must not be modified.
func (s *Sorted[K]) Keys() []K {
	return s.keys
}

// CountDuplicates returns the number of keys in the ascending slice keys that
// are equal to their predecessor.
func CountDuplicates[K Key](keys []K) int64 {
	var dups int64
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			dups++
		}
	}
	return dups
}
