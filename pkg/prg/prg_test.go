package prg_test

import (
	"bytes"
	"testing"

	"github.com/auctionmesh/divtoken/pkg/prg"
)

func TestExpandStepAgreement(t *testing.T) {
	k := make([]byte, prg.Size)
	for i := range k {
		k[i] = byte(i)
	}

	left, right := prg.Expand(k)
	if got := prg.Step(k, 0); !bytes.Equal(got[:], left[:]) {
		t.Fatalf("Step(k, 0) != Expand left half")
	}
	if got := prg.Step(k, 1); !bytes.Equal(got[:], right[:]) {
		t.Fatalf("Step(k, 1) != Expand right half")
	}
}

func TestExpandDeterministic(t *testing.T) {
	k := []byte("some arbitrary 32-byte seed!!!!!")
	l1, r1 := prg.Expand(k)
	l2, r2 := prg.Expand(k)
	if l1 != l2 || r1 != r2 {
		t.Fatal("Expand is not deterministic")
	}
	if l1 == r1 {
		t.Fatal("left and right halves collided")
	}
}
