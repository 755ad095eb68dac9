package root

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/auctionmesh/divtoken/circuits/gadgets"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// Assignment is the native-Go material needed to build a root-circuit
// witness: the wallet root, the commitment opening, and the issuer's
// signature over the resulting commitment.
type Assignment struct {
	Root *big.Int
	Open *big.Int
	Com  *big.Int
	Sig  schnorr.Signature
}

// BuildWitness converts a native Assignment into the frontend.Circuit
// assignment gnark expects for witness generation.
func BuildWitness(a Assignment) *Circuit {
	var e [32]frontend.Variable
	for i, b := range a.Sig.E {
		e[i] = b
	}

	return &Circuit{
		Root: a.Root,
		Open: a.Open,
		Com:  a.Com,
		Sig: gadgets.SchnorrSignature{
			S: a.Sig.S,
			E: e,
		},
	}
}
