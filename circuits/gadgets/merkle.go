// Package gadgets holds the in-circuit building blocks shared by the spend
// circuit: Merkle membership verification and Schnorr signature
// verification, each built to mirror its native counterpart
// (pkg/merkle, pkg/schnorr) constraint-for-constraint.
package gadgets

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/auctionmesh/divtoken/config"
)

// MerkleProof is a runtime-sized Merkle membership sub-circuit: Depth
// siblings paired with direction bits, proving LeafValue is a descendant
// of RootHash. Unlike the teacher's fixed-array gadget (which pads unused
// levels with a zero sibling sentinel), every level here is real — depth is
// fixed by the enclosing circuit's height, not by a shared maximum, so
// there is no padding convention to enforce.
type MerkleProof struct {
	RootHash   frontend.Variable
	LeafValue  frontend.Variable
	ProofPath  []frontend.Variable
	Directions []frontend.Variable
}

// NewMerkleProof allocates a MerkleProof sized for the given depth, ready
// to have its fields populated by a witness builder.
func NewMerkleProof(depth int) MerkleProof {
	return MerkleProof{
		ProofPath:  make([]frontend.Variable, depth),
		Directions: make([]frontend.Variable, depth),
	}
}

// Verify asserts that walking LeafValue up through ProofPath, following
// Directions (0 = sibling on the right, 1 = sibling on the left), reaches
// RootHash.
func (m *MerkleProof) Verify(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, config.Poseidon2Width, config.Poseidon2FullRounds, config.Poseidon2PartialRounds)
	if err != nil {
		return err
	}
	hasher := hash.NewMerkleDamgardHasher(api, p, 0)

	current := m.LeafValue
	for i := range m.ProofPath {
		sibling := m.ProofPath[i]
		direction := m.Directions[i]

		hasher.Reset()
		left := api.Select(direction, sibling, current)
		right := api.Select(direction, current, sibling)
		hasher.Write(left, right)
		current = hasher.Sum()
	}

	api.AssertIsEqual(current, m.RootHash)
	return nil
}
