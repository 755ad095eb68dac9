package spend

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/auctionmesh/divtoken/circuits/gadgets"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// Assignment is the native-Go material needed to build a spend-circuit
// witness at a given depth: the leaf being revealed, the root it descends
// from, the commitment opening and signature over the root's commitment,
// and the Merkle sibling path from leaf to root.
type Assignment struct {
	Leaf       *big.Int
	Root       *big.Int
	Open       *big.Int
	Com        *big.Int
	Sig        schnorr.Signature
	Siblings   []*big.Int
	Directions []int
}

// BuildWitness converts a native Assignment into the frontend.Circuit
// assignment gnark expects for witness generation. depth must match the
// length of a.Siblings/a.Directions, and the compiled circuit's depth.
func BuildWitness(depth int, a Assignment) (*Circuit, error) {
	if len(a.Siblings) != depth || len(a.Directions) != depth {
		return nil, fmt.Errorf("spend: witness depth mismatch: want %d siblings/directions, got %d/%d", depth, len(a.Siblings), len(a.Directions))
	}

	var e [32]frontend.Variable
	for i, b := range a.Sig.E {
		e[i] = b
	}

	path := gadgets.NewMerkleProof(depth)
	for i := 0; i < depth; i++ {
		path.ProofPath[i] = a.Siblings[i]
		path.Directions[i] = a.Directions[i]
	}

	return &Circuit{
		Leaf: a.Leaf,
		Root: a.Root,
		Open: a.Open,
		Com:  a.Com,
		Sig: gadgets.SchnorrSignature{
			S: a.Sig.S,
			E: e,
		},
		Path: path,
	}, nil
}
