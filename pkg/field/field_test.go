package field

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	x := big.NewInt(123456789)
	enc := EncodeCanonicalLE(x)

	got, err := DecodeCanonicalLE(enc[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cmp(x) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", got, x)
	}
}

func TestDecodeRejectsNonCanonical(t *testing.T) {
	modulus := fr.Modulus() // == modulus, not canonical (must be < modulus)
	buf := make([]byte, Size)
	be := modulus.Bytes()
	for i, b := range be {
		buf[len(be)-1-i] = b
	}

	if _, err := DecodeCanonicalLE(buf); err == nil {
		t.Fatalf("expected non-canonical encoding to be rejected")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := DecodeCanonicalLE([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected short encoding to be rejected")
	}
}

func TestFromBytesModOrderReducesLargeInput(t *testing.T) {
	big64 := make([]byte, 64)
	for i := range big64 {
		big64[i] = 0xFF
	}
	got := FromBytesModOrder(big64)
	if got.Cmp(fr.Modulus()) >= 0 {
		t.Fatalf("result not reduced below modulus")
	}
}
