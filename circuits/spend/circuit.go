// Package spend implements the height-h > 0 denomination circuit: it proves
// that a Merkle node — the public "leaf" — is a descendant of a root
// committed and signed under the Schnorr scheme, without revealing the
// root or where in the tree the node sits. One compiled circuit exists per
// supported height 1..L; NewCircuit(depth) builds the Go struct for a given
// height's path length, and setup produces one (pk_h, vk_h) pair per depth.
package spend

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/auctionmesh/divtoken/circuits/gadgets"
)

// Circuit proves: Poseidon(Root, Open) = Com, Verify_Schnorr(pk, Com, Sig)
// holds, and Leaf is a Merkle descendant of Root via Path.
type Circuit struct {
	// Public
	Leaf frontend.Variable `gnark:",public"`

	// Private
	Root frontend.Variable
	Open frontend.Variable
	Com  frontend.Variable
	Sig  gadgets.SchnorrSignature
	Path gadgets.MerkleProof

	// Circuit constants.
	PublicKeyX, PublicKeyY *big.Int `gnark:"-"`
	BaseX, BaseY           *big.Int `gnark:"-"`
}

// NewCircuit returns a Circuit compiled for the given Merkle path depth
// (the denomination's height h, 1 <= h <= L), with the issuer public key
// and curve base point baked in as constants.
func NewCircuit(depth int, pkX, pkY, baseX, baseY *big.Int) *Circuit {
	return &Circuit{
		Path:       gadgets.NewMerkleProof(depth),
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
	if err := gadgets.VerifySchnorr(api, c.BaseX, c.BaseY, pk, c.Com, c.Sig); err != nil {
		return err
	}

	c.Path.RootHash = c.Root
	c.Path.LeafValue = c.Leaf
	return c.Path.Verify(api)
}
