// Package bitseq provides a packed binary sequence model for statistical
// randomness evaluation. Bits are stored eight per byte, most significant
// bit first, so a sequence of n bits occupies ceil(n/8) bytes and converts
// losslessly to and from raw byte streams.
package bitseq

import (
	"fmt"
	"math/bits"
)

// BitSequence is a fixed-length sequence of bits packed into bytes.
// Bit i of the sequence lives in data[i/8] at position 7-(i%8), so the
// first bit of the sequence is the most significant bit of the first byte.
// Unused low bits of the final byte are always zero.
type BitSequence struct {
	data []byte
	size int
}

// New creates a BitSequence of the given length with all bits cleared.
// A negative length is treated as zero.
func New(size int) *BitSequence {
	if size < 0 {
		size = 0
	}
	return &BitSequence{
		data: make([]byte, (size+7)/8),
		size: size,
	}
}

// FromBytes creates a BitSequence covering every bit of the given bytes.
// The input is copied, so later mutation of data does not affect the
// sequence. The resulting length is len(data)*8.
func FromBytes(data []byte) *BitSequence {
	s := &BitSequence{
		data: make([]byte, len(data)),
		size: len(data) * 8,
	}
	copy(s.data, data)
	return s
}

// Size returns the number of bits in the sequence.
func (s *BitSequence) Size() int {
	return s.size
}

// Bit returns the bit at index i. Indices outside [0, Size()) panic with a
// bounds error; access is never silently truncated.
func (s *BitSequence) Bit(i int) bool {
	if i < 0 || i >= s.size {
		panic(fmt.Sprintf("bitseq: index %d out of range [0, %d)", i, s.size))
	}
	return s.data[i/8]>>(7-uint(i%8))&1 == 1
}

// SetBit sets the bit at index i to v. Indices outside [0, Size()) panic
// with a bounds error.
func (s *BitSequence) SetBit(i int, v bool) {
	if i < 0 || i >= s.size {
		panic(fmt.Sprintf("bitseq: index %d out of range [0, %d)", i, s.size))
	}
	mask := byte(1) << (7 - uint(i%8))
	if v {
		s.data[i/8] |= mask
	} else {
		s.data[i/8] &^= mask
	}
}

// CountOnes returns the number of set bits in the sequence. It counts over
// the packed bytes directly; the invariant that the final byte's unused low
// bits stay zero makes the per-byte popcount exact.
func (s *BitSequence) CountOnes() int {
	ones := 0
	for _, b := range s.data {
		ones += bits.OnesCount8(b)
	}
	return ones
}

// Bytes returns a copy of the packed representation, MSB-first with the
// final byte zero-padded in its unused low bits.
func (s *BitSequence) Bytes() []byte {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// Resize changes the sequence length to n bits, preserving the prefix that
// survives. Growing appends zero bits; shrinking discards the tail and
// clears the now-unused low bits of the final byte.
func (s *BitSequence) Resize(n int) {
	if n < 0 {
		n = 0
	}
	byteLen := (n + 7) / 8
	if byteLen > len(s.data) {
		grown := make([]byte, byteLen)
		copy(grown, s.data)
		s.data = grown
	} else {
		s.data = s.data[:byteLen]
	}
	s.size = n
	// Clear padding bits exposed by a shrink.
	if rem := n % 8; rem != 0 && byteLen > 0 {
		s.data[byteLen-1] &= byte(0xFF) << (8 - uint(rem))
	}
}

// Clone returns an independent copy of the sequence.
func (s *BitSequence) Clone() *BitSequence {
	c := &BitSequence{
		data: make([]byte, len(s.data)),
		size: s.size,
	}
	copy(c.data, s.data)
	return c
}

// Equal reports whether two sequences have the same length and bits.
func (s *BitSequence) Equal(other *BitSequence) bool {
	if s.size != other.size {
		return false
	}
	for i, b := range s.data {
		if b != other.data[i] {
			return false
		}
	}
	return true
}
