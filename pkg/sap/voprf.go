// Package sap implements the single-use VOPRF baseline (SAP): a calibration
// point for the divisible-token core (pkg/wallet, pkg/issuer), built on the
// same inner curve and Poseidon sponge already wired for Schnorr so the
// benchmark harness (cmd/bench) can compare both schemes without pulling in
// a second curve stack. A token's preimage is hashed onto the curve with a
// try-and-increment search (no dedicated hash-to-curve function exists in
// the pack's curve library), blinded by the client, signed by the issuer's
// secret scalar, and unblinded — the classic 2HashDH oblivious PRF.
package sap

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/auctionmesh/divtoken/pkg/poseidon"
)

// Params bundles the inner curve parameters every client and server needs.
type Params struct {
	Curve twistededwards.CurveParams
}

// NewParams loads the same BN254-native twisted Edwards curve pkg/schnorr uses.
func NewParams() Params {
	return Params{Curve: twistededwards.GetEdwardsCurve()}
}

// GenerateKey samples the issuer's VOPRF secret scalar and its public point.
func GenerateKey(p Params) (sk *big.Int, pk twistededwards.PointAffine, err error) {
	sk, err = rand.Int(rand.Reader, &p.Curve.Order)
	if err != nil {
		return nil, twistededwards.PointAffine{}, fmt.Errorf("sap: generate key: %w", err)
	}
	pk.ScalarMultiplication(&p.Curve.Base, sk)
	return sk, pk, nil
}

// hashToCurve maps an arbitrary preimage onto the curve by searching
// successive Poseidon-derived x-coordinates (appending an incrementing
// counter) until one yields a valid y, then clearing the cofactor so the
// result lands in the prime-order subgroup scalar multiplication expects.
func hashToCurve(curve twistededwards.CurveParams, preimage []byte) twistededwards.PointAffine {
	var a, d fr.Element
	a.SetBigInt(&curve.A)
	d.SetBigInt(&curve.D)

	for counter := uint32(0); ; counter++ {
		xBig := poseidon.HashBytes(preimage, encodeCounter(counter))

		var x, x2, num, den, y2, y fr.Element
		x.SetBigInt(xBig)
		x2.Square(&x)

		num.SetOne()
		var t fr.Element
		t.Mul(&a, &x2)
		num.Sub(&num, &t)

		den.SetOne()
		t.Mul(&d, &x2)
		den.Sub(&den, &t)

		if den.IsZero() {
			continue
		}
		den.Inverse(&den)
		y2.Mul(&num, &den)

		if y.Sqrt(&y2) == nil {
			continue
		}

		pt := twistededwards.PointAffine{X: x, Y: y}
		var cleared twistededwards.PointAffine
		cleared.ScalarMultiplication(&pt, &curve.Cofactor)
		return cleared
	}
}

func encodeCounter(counter uint32) []byte {
	return []byte{byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter)}
}

// Token is the client's private record of one unissued token: a random
// preimage (the value the server will later re-derive at redemption) and
// the blinding scalar used to hide T = HashToCurve(preimage) from the issuer.
type Token struct {
	Preimage [32]byte
	Blind    *big.Int
}

// BlindedToken is what the client sends the issuer: r * HashToCurve(preimage).
type BlindedToken = twistededwards.PointAffine

// SignedToken is the issuer's response to one blinded token: sk * BlindedToken.
type SignedToken = twistededwards.PointAffine

// UnblindedToken is the client's final, redeemable token: the preimage plus
// W = sk * HashToCurve(preimage), recovered by removing the blinding factor.
type UnblindedToken struct {
	Preimage [32]byte
	W        twistededwards.PointAffine
}

// NewToken samples a fresh preimage and blinding scalar, and returns both
// the private Token and the BlindedToken to send the issuer.
func NewToken(p Params) (Token, BlindedToken, error) {
	var preimage [32]byte
	if _, err := rand.Read(preimage[:]); err != nil {
		return Token{}, BlindedToken{}, fmt.Errorf("sap: sample preimage: %w", err)
	}

	r, err := rand.Int(rand.Reader, &p.Curve.Order)
	if err != nil {
		return Token{}, BlindedToken{}, fmt.Errorf("sap: sample blind: %w", err)
	}

	t := hashToCurve(p.Curve, preimage[:])
	var blinded BlindedToken
	blinded.ScalarMultiplication(&t, r)

	return Token{Preimage: preimage, Blind: r}, blinded, nil
}

// Sign applies the issuer's secret scalar to a blinded token.
func Sign(sk *big.Int, blinded BlindedToken) SignedToken {
	var signed SignedToken
	signed.ScalarMultiplication(&blinded, sk)
	return signed
}

// Unblind removes tok's blinding factor from signed, recovering W = sk*T.
func Unblind(p Params, tok Token, signed SignedToken) UnblindedToken {
	rInv := new(big.Int).ModInverse(tok.Blind, &p.Curve.Order)
	var w twistededwards.PointAffine
	w.ScalarMultiplication(&signed, rInv)
	return UnblindedToken{Preimage: tok.Preimage, W: w}
}

// Redeem recomputes W' = sk*HashToCurve(preimage) and checks it matches the
// token's W, the issuer-side half of verification (the caller is also
// responsible for the double-spend check on Preimage).
func Redeem(p Params, sk *big.Int, tok UnblindedToken) bool {
	t := hashToCurve(p.Curve, tok.Preimage[:])
	var want twistededwards.PointAffine
	want.ScalarMultiplication(&t, sk)
	return want.X.Equal(&tok.W.X) && want.Y.Equal(&tok.W.Y)
}
