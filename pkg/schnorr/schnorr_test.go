package schnorr

import (
	"math/big"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	p := NewParams()
	sk, pk, err := GenerateKey(p)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	m := big.NewInt(424242)
	sig, err := Sign(p, sk, m)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !Verify(p, pk, m, sig) {
		t.Fatalf("signature should verify")
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	p := NewParams()
	sk, pk, err := GenerateKey(p)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	m := big.NewInt(1)
	other := big.NewInt(2)

	sig, err := Sign(p, sk, m)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if Verify(p, pk, other, sig) {
		t.Fatalf("signature must not verify under a different message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	p := NewParams()
	sk, _, err := GenerateKey(p)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, otherPK, err := GenerateKey(p)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	m := big.NewInt(7)
	sig, err := Sign(p, sk, m)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if Verify(p, otherPK, m, sig) {
		t.Fatalf("signature must not verify under a different public key")
	}
}
