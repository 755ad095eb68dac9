// Package schnorr implements a Schnorr signature over the inner twisted
// Edwards curve defined natively on BN254's scalar field: sign m by
// sampling k, committing R = k*G, deriving a Poseidon-sponge challenge over
// (R, m), and responding s = k - e*sk. The challenge hash is Poseidon
// rather than a byte-oriented hash specifically so the in-circuit verifier
// (circuits/gadgets) can replicate the same computation with the same
// gadget the prover used natively.
package schnorr

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/auctionmesh/divtoken/pkg/poseidon"
)

// PublicKey is a point on the inner curve, pk = sk*G.
type PublicKey = twistededwards.PointAffine

// Signature is (prover_response, verifier_challenge): s is the inner-curve
// scalar response, e is the 32-byte Poseidon-squeezed challenge.
type Signature struct {
	S *big.Int
	E [32]byte
}

// Params bundles the inner curve's public generator and subgroup order,
// fixed once at setup and shared verbatim by every client and the server.
type Params struct {
	Curve twistededwards.CurveParams
}

// NewParams loads the BN254-native twisted Edwards curve parameters.
func NewParams() Params {
	return Params{Curve: twistededwards.GetEdwardsCurve()}
}

// GenerateKey samples a secret scalar mod the curve's subgroup order and
// derives the corresponding public point pk = sk*G.
func GenerateKey(p Params) (sk *big.Int, pk PublicKey, err error) {
	sk, err = rand.Int(rand.Reader, &p.Curve.Order)
	if err != nil {
		return nil, PublicKey{}, fmt.Errorf("schnorr: generate key: %w", err)
	}
	pk.ScalarMultiplication(&p.Curve.Base, sk)
	return sk, pk, nil
}

// Sign produces a signature over message m (a field element, e.g. a
// Poseidon commitment) under secret key sk.
func Sign(p Params, sk *big.Int, m *big.Int) (Signature, error) {
	k, err := rand.Int(rand.Reader, &p.Curve.Order)
	if err != nil {
		return Signature{}, fmt.Errorf("schnorr: sample nonce: %w", err)
	}

	var r PublicKey
	r.ScalarMultiplication(&p.Curve.Base, k)

	e := challenge(r, m)
	eInt := new(big.Int).SetBytes(e[:])
	eInt.Mod(eInt, &p.Curve.Order)

	s := new(big.Int).Mul(eInt, sk)
	s.Sub(k, s)
	s.Mod(s, &p.Curve.Order)

	return Signature{S: s, E: e}, nil
}

// Verify recomputes R' = s*G + e*pk and checks the resulting challenge
// matches the witnessed one.
func Verify(p Params, pk PublicKey, m *big.Int, sig Signature) bool {
	eInt := new(big.Int).SetBytes(sig.E[:])
	eInt.Mod(eInt, &p.Curve.Order)

	var sG, ePk, rPrime PublicKey
	sG.ScalarMultiplication(&p.Curve.Base, sig.S)
	ePk.ScalarMultiplication(&pk, eInt)
	rPrime.Add(&sG, &ePk)

	ePrime := challenge(rPrime, m)
	return ePrime == sig.E
}

// EncodePublicKey returns pk's affine coordinates as decimal strings, the
// disk/wire convention every ceremony participant and server publishes its
// issuer public key under.
func EncodePublicKey(pk PublicKey) (x, y string) {
	return pk.X.BigInt(new(big.Int)).String(), pk.Y.BigInt(new(big.Int)).String()
}

// DecodePublicKey parses the decimal coordinates EncodePublicKey produces.
func DecodePublicKey(x, y string) (PublicKey, error) {
	var pk PublicKey
	xi, ok := new(big.Int).SetString(x, 10)
	if !ok {
		return pk, fmt.Errorf("schnorr: malformed x coordinate %q", x)
	}
	yi, ok := new(big.Int).SetString(y, 10)
	if !ok {
		return pk, fmt.Errorf("schnorr: malformed y coordinate %q", y)
	}
	pk.X.SetBigInt(xi)
	pk.Y.SetBigInt(yi)
	return pk, nil
}

// challenge computes e = PoseidonSqueeze32(R_bytes || m_bytes), absorbing
// the point's affine coordinates followed by the message.
func challenge(r PublicKey, m *big.Int) [32]byte {
	digest := poseidon.Hash(r.X.BigInt(new(big.Int)), r.Y.BigInt(new(big.Int)), m)

	var out [32]byte
	digest.FillBytes(out[:])
	return out
}
