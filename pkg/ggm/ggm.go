// Package ggm implements the GGM length-doubling constrained PRF: a balanced
// binary tree of depth d with 2^d leaves, built from pkg/prg. Any internal
// node's key delegates exactly the leaves beneath it, which is what lets a
// coin of denomination 2^(L-h) hand the server a single subkey instead of
// 2^(L-h) individual leaf keys.
package ggm

import "github.com/auctionmesh/divtoken/pkg/prg"

// Expand produces all 2^d leaves under key k, in left-first DFS (= in-order
// for a binary tree) order. Expand(k, 0) = [k].
func Expand(k [prg.Size]byte, d int) [][prg.Size]byte {
	if d == 0 {
		return [][prg.Size]byte{k}
	}
	left, right := prg.Expand(k[:])
	leaves := make([][prg.Size]byte, 0, 1<<uint(d))
	leaves = append(leaves, Expand(left, d-1)...)
	leaves = append(leaves, Expand(right, d-1)...)
	return leaves
}

// Eval walks the tree by bit-vector x (MSB-first: x[0] chooses the branch at
// the root, x[len(x)-1] the branch just above the target), returning the key
// at that internal node or leaf. Eval(k, bits) equals Expand(k, len(bits))
// at index(bits) for any leaf-depth bit-vector.
func Eval(k [prg.Size]byte, x []byte) [prg.Size]byte {
	cur := k
	for _, bit := range x {
		cur = prg.Step(cur[:], bit)
	}
	return cur
}

// U16ToBV returns the low `length` bits of the big-endian representation of
// x, MSB-first: index i in [0, 2^length) corresponds to the walking-order
// label bit_{length-1}(i), ..., bit_0(i).
func U16ToBV(x uint16, length int) []byte {
	bits := make([]byte, length)
	for i := 0; i < length; i++ {
		shift := uint(length - 1 - i)
		bits[i] = byte((x >> shift) & 1)
	}
	return bits
}
