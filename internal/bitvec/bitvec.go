// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package bitvec defines a small fixed-length bit vector used
// for image slot and synchronization bookkeeping.
package bitvec

import "math/bits"

// V is a fixed-length bit vector.
// Its length is established by New and does not change.
// V can track at most 64 bits, which is well above the
// number of images a swapchain may have.
type V struct {
	bits uint64
	n    int
}

// New creates a bit vector with n bits, all unset.
// It panics if n is not in the range [0, 64].
func New(n int) V {
	if n < 0 || n > 64 {
		panic("bitvec: length out of range")
	}
	return V{n: n}
}

// Len returns the number of bits in the vector.
func (v *V) Len() int { return v.n }

// Set sets the bit at index.
func (v *V) Set(index int) {
	v.check(index)
	v.bits |= 1 << index
}

// Unset unsets the bit at index.
func (v *V) Unset(index int) {
	v.check(index)
	v.bits &^= 1 << index
}

// IsSet returns whether the bit at index is set.
func (v *V) IsSet(index int) bool {
	v.check(index)
	return v.bits&(1<<index) != 0
}

// Search returns the index of the first unset bit.
// If every bit is set, ok will be false.
func (v *V) Search() (index int, ok bool) {
	index = bits.TrailingZeros64(^v.bits)
	if index >= v.n {
		return 0, false
	}
	return index, true
}

// Count returns the number of set bits.
func (v *V) Count() int {
	return bits.OnesCount64(v.bits)
}

// Clear unsets all bits.
func (v *V) Clear() { v.bits = 0 }

func (v *V) check(index int) {
	if index < 0 || index >= v.n {
		panic("bitvec: index out of range")
	}
}
