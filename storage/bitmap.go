package storage

import (
	"math/bits"

	"github.com/mspronesti/simpledb/common"
)

// Bitmap provides a convenient interface for manipulating bits in a byte slice.
// It does not own the underlying bytes; instead, it provides a structured view over
// an existing buffer (e.g., the header of a heap page).
//
// Bit i lives in byte i/8 at bit position i%8, least significant bit first. This is the on-disk order of the
// slot header, so the bitmap cannot be reinterpreted as wider words without depending on host byte order.
type Bitmap struct {
	data    []byte
	numBits int
}

// AsBitmap creates a Bitmap view over the provided byte slice.
// data must hold at least ceil(numBits/8) bytes.
func AsBitmap(data []byte, numBits int) Bitmap {
	common.Assert(len(data) >= common.CeilDiv(numBits, 8), "bitmap buffer too small")
	return Bitmap{
		data:    data[:common.CeilDiv(numBits, 8)],
		numBits: numBits,
	}
}

// Len returns the number of bits in the bitmap.
func (b *Bitmap) Len() int {
	return b.numBits
}

// SetBit sets the bit at index i to the given value.
// Returns the previous value of the bit.
func (b *Bitmap) SetBit(i int, on bool) (originalValue bool) {
	common.Assert(i >= 0 && i < b.numBits, "indexing out of bounds")
	mask := byte(1) << uint(i%8)
	ptr := &b.data[i/8]
	originalValue = (*ptr & mask) != 0
	if on {
		*ptr |= mask
	} else {
		*ptr &^= mask
	}
	return originalValue
}

// LoadBit returns the value of the bit at index i.
func (b *Bitmap) LoadBit(i int) bool {
	common.Assert(i >= 0 && i < b.numBits, "indexing out of bounds")
	return b.data[i/8]&(byte(1)<<uint(i%8)) != 0
}

// CountOnes returns the number of set bits. Bits past numBits in the last byte are ignored.
func (b *Bitmap) CountOnes() int {
	n := 0
	full := b.numBits / 8
	for _, w := range b.data[:full] {
		n += bits.OnesCount8(w)
	}
	if rem := b.numBits % 8; rem != 0 {
		n += bits.OnesCount8(b.data[full] & (byte(1)<<uint(rem) - 1))
	}
	return n
}

// FindFirstZero searches for the first bit set to 0 (false) in the bitmap.
// It begins the search at startHint and scans to the end of the bitmap.
// If no zero bit is found, it wraps around and scans from the beginning (index 0)
// up to startHint.
//
// Returns the index of the first zero bit found, or -1 if the bitmap is entirely full.
func (b *Bitmap) FindFirstZero(startHint int) int {
	if r := b.findFirstZeroInRange(startHint, b.numBits); r != -1 {
		return r
	}
	return b.findFirstZeroInRange(0, startHint)
}

func (b *Bitmap) findFirstZeroInRange(start, end int) int {
	common.Assert(start >= 0 && start <= end && end <= b.numBits, "invalid Bitmap range")
	for i := start; i < end; {
		// Skip full bytes when aligned
		if i%8 == 0 && i+8 <= end && b.data[i/8] == 0xFF {
			i += 8
			continue
		}
		if !b.LoadBit(i) {
			return i
		}
		i++
	}
	return -1
}
