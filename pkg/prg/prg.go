// Package prg implements the length-doubling pseudorandom generator the GGM
// tree is built on: a 32-byte key k expands to two independent 32-byte
// children L = BLAKE3(k ‖ 0x00), R = BLAKE3(k ‖ 0x01).
package prg

import (
	"github.com/zeebo/blake3"
)

// domain tags separate the left-child and right-child derivations so that
// the two halves of Expand can never collide on the same BLAKE3 input.
const (
	domainLeft  = 0x00
	domainRight = 0x01
)

// Size is the byte width of every PRG key, seed, and output half.
const Size = 32

// Expand maps a seed to its two children (L, R) = PRG(seed). Each half is
// an independent domain-tagged BLAKE3 digest of the seed, so L and R reveal
// nothing about each other beyond what the seed already determines.
func Expand(seed []byte) (left, right [Size]byte) {
	left = derive(domainLeft, seed)
	right = derive(domainRight, seed)
	return left, right
}

// Step derives the single child reached by descending one bit from k: bit
// 0 yields the same value as Expand's left half, bit 1 the right half. It
// exists so GGM evaluation along a known path never needs to materialize
// the sibling it won't use.
func Step(k []byte, bit byte) [Size]byte {
	if bit == 0 {
		return derive(domainLeft, k)
	}
	return derive(domainRight, k)
}

func derive(tag byte, seed []byte) [Size]byte {
	h := blake3.New()
	h.Write(seed)
	h.Write([]byte{tag})

	var out [Size]byte
	if _, err := h.Digest().Read(out[:]); err != nil {
		// blake3's XOF reader never returns an error for a fixed-size read
		// into an in-memory buffer; a panic here means the dependency's
		// contract changed underneath us.
		panic("prg: blake3 digest read failed: " + err.Error())
	}
	return out
}
