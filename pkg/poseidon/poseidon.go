// Package poseidon wraps gnark-crypto's Poseidon2 Merkle-Damgard sponge in
// the handful of fixed-arity shapes the rest of the system needs: hashing
// two Merkle children together, hashing a variable-length list of field
// elements (commitments, challenges), and domain-tagged leaf hashing.
// HashNodes and Hash have in-circuit twins built from
// github.com/consensys/gnark/std/permutation/poseidon2, so a verifier
// replays exactly the same absorption order the prover used.
package poseidon

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Domain tags separate a real wallet leaf from a padding (zero-subtree)
// leaf, so an all-zero real leaf can never collide with a padding leaf.
const (
	DomainLeaf    = 1
	DomainPadding = 0
)

// HashNodes combines two Merkle children into their parent hash.
func HashNodes(left, right *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()

	var l, r fr.Element
	l.SetBigInt(left)
	r.SetBigInt(right)
	lb := l.Bytes()
	rb := r.Bytes()
	h.Write(lb[:])
	h.Write(rb[:])

	return new(big.Int).SetBytes(h.Sum(nil))
}

// Hash absorbs an arbitrary list of field elements in order and squeezes a
// single field element out. Used for the wallet commitment
// com = Poseidon(root, open), the Schnorr challenge sponge, and any other
// fixed-order multi-input hash.
func Hash(elements ...*big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()

	var e fr.Element
	for _, x := range elements {
		e.SetBigInt(x)
		b := e.Bytes()
		h.Write(b[:])
	}

	return new(big.Int).SetBytes(h.Sum(nil))
}

// HashBytes absorbs raw byte strings directly (each written as-is, with no
// field reduction), squeezing a single field element. Used by pkg/sap's
// hash-to-curve search over (preimage || counter); it has no in-circuit
// counterpart.
func HashBytes(chunks ...[]byte) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, c := range chunks {
		h.Write(c)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// LeafHash hashes a single field element (a GGM leaf mapped into F) with the
// real-leaf domain tag, so a genuine zero leaf can never be mistaken for a
// padding position in the sparse tree.
func LeafHash(leaf *big.Int) *big.Int {
	return Hash(big.NewInt(DomainLeaf), leaf)
}

// ZeroLeafHash returns the padding-leaf hash H(DomainPadding), the base of
// the sparse tree's zero-subtree hash chain.
func ZeroLeafHash() *big.Int {
	return Hash(big.NewInt(DomainPadding))
}
