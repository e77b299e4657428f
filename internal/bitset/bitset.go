// Package bitset provides fixed-length bit sequences used for culture tags,
// immune systems, and diseases, plus the distance and matching operations the
// rules are built on.
package bitset

import (
	"math/rand"
	"strings"
)

// Bits is a fixed-length bit sequence. Length is set at construction and
// never changes; all operations that combine two sequences require equal
// lengths unless stated otherwise.
type Bits []bool

// New returns an all-zero sequence of the given length.
func New(length int) Bits {
	return make(Bits, length)
}

// Random returns a sequence of the given length with uniformly random bits.
func Random(rng *rand.Rand, length int) Bits {
	b := make(Bits, length)
	for i := range b {
		b[i] = rng.Intn(2) == 1
	}
	return b
}

// Clone returns an independent copy.
func (b Bits) Clone() Bits {
	c := make(Bits, len(b))
	copy(c, b)
	return c
}

// String renders the sequence as a string of '0' and '1' characters.
// Also used as a map key when deduplicating disease sets.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Equal reports whether two sequences have the same length and bits.
func Equal(a, b Bits) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Ones returns the number of set bits.
func (b Bits) Ones() int {
	n := 0
	for _, bit := range b {
		if bit {
			n++
		}
	}
	return n
}

// Majority returns the majority bit value (0 or 1). The caller must ensure
// the length is odd so a majority always exists.
func Majority(b Bits) int {
	if b.Ones()*2 > len(b) {
		return 1
	}
	return 0
}

// Hamming returns the number of positions at which a and b differ.
// Both sequences must have the same length.
func Hamming(a, b Bits) int {
	if len(a) != len(b) {
		panic("bitset: hamming distance of unequal lengths")
	}
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// Contains reports whether needle occurs as a contiguous substring of hay.
func Contains(hay, needle Bits) bool {
	if len(needle) > len(hay) {
		return false
	}
	off, dist := BestMatch(hay, needle)
	return off >= 0 && dist == 0
}

// BestMatch finds the offset of the length-len(needle) window of hay with the
// minimum Hamming distance to needle. Ties resolve to the lowest offset.
// Returns (-1, -1) if needle is longer than hay.
func BestMatch(hay, needle Bits) (offset, dist int) {
	if len(needle) > len(hay) {
		return -1, -1
	}
	offset, dist = 0, len(needle)+1
	for off := 0; off+len(needle) <= len(hay); off++ {
		d := 0
		for i := range needle {
			if hay[off+i] != needle[i] {
				d++
			}
		}
		if d < dist {
			offset, dist = off, d
			if d == 0 {
				break
			}
		}
	}
	return offset, dist
}

// Crossover returns a new sequence where each bit is taken from a or b with
// equal probability. Both parents must have the same length.
func Crossover(rng *rand.Rand, a, b Bits) Bits {
	if len(a) != len(b) {
		panic("bitset: crossover of unequal lengths")
	}
	child := make(Bits, len(a))
	for i := range child {
		if rng.Intn(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child
}
