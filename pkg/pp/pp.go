// Package pp holds the wallet scheme's public parameters: everything a
// client needs to build and verify issuance and spend proofs, fixed once at
// server boot and broadcast verbatim to clients. The issuer's Schnorr
// secret never appears here — pkg/issuer holds it separately.
package pp

import (
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"

	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// PublicParams bundles the Schnorr parameters, the issuer's public key, and
// one compiled circuit plus (proving key, verifying key) pair per supported
// height h in [0, MaxHeight]. Height 0 is the root (whole-wallet) circuit;
// heights 1..MaxHeight are spend circuits of that Merkle-path depth.
type PublicParams struct {
	Schnorr   schnorr.Params
	IssuerPK  schnorr.PublicKey
	MaxHeight int

	CCS           map[int]constraint.ConstraintSystem
	ProvingKeys   map[int]groth16.ProvingKey
	VerifyingKeys map[int]groth16.VerifyingKey
}

// BasePoint returns the inner curve's generator coordinates as plain
// big.Int, the form the spend/root circuits embed as Go-level constants.
func (p *PublicParams) BasePoint() (x, y *big.Int) {
	return p.Schnorr.Curve.Base.X.BigInt(new(big.Int)), p.Schnorr.Curve.Base.Y.BigInt(new(big.Int))
}

// IssuerPublicKey returns the issuer's verifying point coordinates as plain
// big.Int, the form the spend/root circuits embed as Go-level constants.
func (p *PublicParams) IssuerPublicKey() (x, y *big.Int) {
	return p.IssuerPK.X.BigInt(new(big.Int)), p.IssuerPK.Y.BigInt(new(big.Int))
}
