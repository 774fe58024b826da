// Package checksum implements the two hash roles of the rsync algorithm:
// a cheap rolling weak checksum used to find candidate blocks, and a
// collision-resistant strong digest used to confirm them.
package checksum

import "github.com/zeebo/blake3"

// StrongSize is the length in bytes of a strong block digest.
const StrongSize = 32

// Strong returns the BLAKE3-256 digest of block. All signatures within a
// run use this one digest; mixing digest kinds in an index is not allowed.
func Strong(block []byte) [StrongSize]byte {
	return blake3.Sum256(block)
}

// Rolling is the Adler-style weak checksum from the rsync algorithm,
// computed over a fixed-size window and updatable in O(1) as the window
// advances one byte. Both component sums are kept modulo 2^16; the digest
// packs them as (b<<16)|a.
//
// The component sums are held as wrapping uint32 values and reduced only
// when the digest is read: 2^16 divides 2^32, so uint32 wraparound
// preserves congruence modulo 2^16.
type Rolling struct {
	a, b uint32
	size uint32
}

// NewRolling computes the checksum of window and prepares it for rolling.
// The window length fixes the block size for all subsequent rolls.
func NewRolling(window []byte) *Rolling {
	r := &Rolling{size: uint32(len(window))}
	for _, c := range window {
		r.a += uint32(c)
		r.b += r.a
	}
	return r
}

// Roll advances the window one byte: out leaves at the front, in enters
// at the back.
func (r *Rolling) Roll(out, in byte) {
	r.a += uint32(in) - uint32(out)
	r.b += r.a - r.size*uint32(out)
}

// Sum returns the packed digest of the current window.
func (r *Rolling) Sum() uint32 {
	return (r.b&0xffff)<<16 | r.a&0xffff
}

// Sum returns the weak checksum of block without retaining rolling state.
func Sum(block []byte) uint32 {
	return NewRolling(block).Sum()
}
