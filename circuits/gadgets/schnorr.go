package gadgets

import (
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/auctionmesh/divtoken/config"
)

// SchnorrSignature is the in-circuit witness for a Schnorr signature:
// S is the inner-curve scalar response, E the 32 challenge bytes packed
// as field-sized limbs (one byte per variable, matching the native
// byte-wise comparison the design note calls for).
type SchnorrSignature struct {
	S frontend.Variable
	E [32]frontend.Variable
}

// SchnorrPublicKey is the circuit-constant verifying point pk = sk*G.
type SchnorrPublicKey struct {
	X, Y frontend.Variable
}

// VerifySchnorr asserts that sig verifies message m under pk, mirroring
// pkg/schnorr.Verify constraint-for-constraint: R' = s*G + e*pk, then
// e' = PoseidonSqueeze32(R'_bytes || m_bytes) compared byte-wise to e.
// baseX, baseY are the inner curve's public generator, the same constant
// pkg/schnorr.Params().Curve.Base carries natively — passed in rather than
// re-derived in-circuit so prover and verifier can never disagree on it.
func VerifySchnorr(api frontend.API, baseX, baseY *big.Int, pk SchnorrPublicKey, m frontend.Variable, sig SchnorrSignature) error {
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}

	// sig.E is big-endian — E[0] is the most significant byte, matching
	// pkg/schnorr's digest.FillBytes convention — while api.FromBinary
	// treats its argument as a little-endian bit sequence, so the bytes
	// must be reversed before packing.
	var eBytesLE [32]frontend.Variable
	for i := 0; i < 32; i++ {
		eBytesLE[i] = sig.E[31-i]
	}
	eScalar := api.FromBinary(packBytesLE(api, eBytesLE[:])...)

	base := twistededwards.Point{X: baseX, Y: baseY}
	pkPoint := twistededwards.Point{X: pk.X, Y: pk.Y}

	sG := curve.ScalarMul(base, sig.S)
	ePk := curve.ScalarMul(pkPoint, eScalar)
	rPrime := curve.Add(sG, ePk)

	p, err := poseidon2.NewPoseidon2FromParameters(api, config.Poseidon2Width, config.Poseidon2FullRounds, config.Poseidon2PartialRounds)
	if err != nil {
		return err
	}
	hasher := hash.NewMerkleDamgardHasher(api, p, 0)
	hasher.Write(rPrime.X, rPrime.Y, m)
	digest := hasher.Sum()

	// digestBits is little-endian (bit 0 is digest's LSB), so its i-th
	// byte chunk is digest's byte (31-i) under the big-endian convention
	// sig.E uses — compare against sig.E[31-i], not sig.E[i].
	digestBits := api.ToBinary(digest, 256)
	for i := 0; i < 32; i++ {
		byteBits := digestBits[i*8 : i*8+8]
		reconstructed := api.FromBinary(byteBits...)
		api.AssertIsEqual(reconstructed, sig.E[31-i])
	}

	return nil
}

// packBytesLE reassembles 32 byte-valued variables (each constrained to a
// single byte by its 8-bit api.ToBinary decomposition) into the
// little-endian bit sequence api.FromBinary expects.
func packBytesLE(api frontend.API, bytesLE []frontend.Variable) []frontend.Variable {
	bits := make([]frontend.Variable, 0, len(bytesLE)*8)
	for _, b := range bytesLE {
		byteBits := api.ToBinary(b, 8)
		bits = append(bits, byteBits...)
	}
	return bits
}
