// Package field converts between raw bytes and elements of the BN254
// scalar field, and implements the canonical little-endian wire encoding
// ("arkworks convention") required at the issuer/client boundary.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Size is the canonical encoded width of a field element, in bytes.
const Size = fr.Bytes

// FromBytesModOrder reduces raw bytes (little-endian, arbitrary length)
// modulo the scalar field order, matching the client's "leaves =
// GGM.expand(seed, L) mapped to F via from_le_bytes_mod_order" step.
func FromBytesModOrder(b []byte) *big.Int {
	var e fr.Element
	e.SetBytes(reversed(b)) // fr.SetBytes is big-endian; b is little-endian
	out := new(big.Int)
	e.BigInt(out)
	return out
}

// EncodeCanonicalLE serializes a field element as 32 little-endian bytes.
// The value is first reduced modulo the field order.
func EncodeCanonicalLE(x *big.Int) [Size]byte {
	var e fr.Element
	e.SetBigInt(x)
	be := e.Bytes() // canonical big-endian
	var out [Size]byte
	for i, b := range be {
		out[Size-1-i] = b
	}
	return out
}

// DecodeCanonicalLE parses 32 little-endian bytes into a field element,
// rejecting any encoding that is not the unique canonical representative
// (i.e. the integer value must already be < field order). Unlike
// fr.Element.SetBytes (which silently reduces mod p), this is the strict
// decode the redeemer boundary requires: non-canonical reductions must be
// rejected, not accepted.
func DecodeCanonicalLE(b []byte) (*big.Int, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("field: encoded element must be %d bytes, got %d", Size, len(b))
	}
	be := reversed(b)
	raw := new(big.Int).SetBytes(be)
	if raw.Cmp(fr.Modulus()) >= 0 {
		return nil, fmt.Errorf("field: non-canonical encoding (value >= field order)")
	}
	var e fr.Element
	e.SetBigInt(raw)
	out := new(big.Int)
	e.BigInt(out)
	return out, nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
