// Package root implements the height-0 denomination circuit: a coin that
// proves the entire wallet (value 2^L) rather than any proper subtree. It
// shares the Schnorr-signature-over-commitment invariant with circuits/spend
// but has no Merkle path to verify — the proved "leaf" is the root itself.
package root

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/auctionmesh/divtoken/circuits/gadgets"
)

// Circuit proves: Poseidon(Root, Open) = Com and Verify_Schnorr(pk, Com, Sig)
// holds, for a fixed issuer public key baked in at construction.
type Circuit struct {
	// Public
	Root frontend.Variable `gnark:",public"`

	// Private
	Open frontend.Variable
	Com  frontend.Variable
	Sig  gadgets.SchnorrSignature

	// Circuit constants (not part of the witness): the issuer's public key
	// and the Schnorr inner curve's base point, fixed for every proof this
	// compiled circuit ever verifies.
	PublicKeyX, PublicKeyY *big.Int `gnark:"-"`
	BaseX, BaseY           *big.Int `gnark:"-"`
}

// New returns a Circuit ready for compilation, with the issuer public key
// and curve base point baked in as constants.
func New(pkX, pkY, baseX, baseY *big.Int) *Circuit {
	return &Circuit{
		PublicKeyX: pkX,
		PublicKeyY: pkY,
		BaseX:      baseX,
		BaseY:      baseY,
	}
}

func (c *Circuit) Define(api frontend.API) error {
	p, err := gadgets.NewPoseidonCommitment(api)
	if err != nil {
		return err
	}
	com := p.Commit(c.Root, c.Open)
	api.AssertIsEqual(com, c.Com)

	pk := gadgets.SchnorrPublicKey{X: c.PublicKeyX, Y: c.PublicKeyY}
	return gadgets.VerifySchnorr(api, c.BaseX, c.BaseY, pk, c.Com, c.Sig)
}
