package gadgets

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/auctionmesh/divtoken/config"
)

// PoseidonCommitment wraps a fresh Merkle-Damgard Poseidon2 sponge for the
// wallet commitment com = Poseidon(root, open), shared by the root and
// spend circuits.
type PoseidonCommitment struct {
	hasher hash.FieldHasher
}

// NewPoseidonCommitment builds the width-2, 6-full/50-partial-round
// Poseidon2 sponge the rest of the system uses for every native and
// in-circuit hash.
func NewPoseidonCommitment(api frontend.API) (*PoseidonCommitment, error) {
	p, err := poseidon2.NewPoseidon2FromParameters(api, config.Poseidon2Width, config.Poseidon2FullRounds, config.Poseidon2PartialRounds)
	if err != nil {
		return nil, err
	}
	return &PoseidonCommitment{hasher: hash.NewMerkleDamgardHasher(api, p, 0)}, nil
}

// Commit absorbs root and open and squeezes com.
func (c *PoseidonCommitment) Commit(root, open frontend.Variable) frontend.Variable {
	c.hasher.Reset()
	c.hasher.Write(root, open)
	return c.hasher.Sum()
}
