package ggm_test

import (
	"testing"

	"github.com/auctionmesh/divtoken/pkg/ggm"
	"github.com/auctionmesh/divtoken/pkg/prg"
)

func seed() [prg.Size]byte {
	var k [prg.Size]byte
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

// TestExpandDepthZero checks expand(k, 0) = [k].
func TestExpandDepthZero(t *testing.T) {
	k := seed()
	leaves := ggm.Expand(k, 0)
	if len(leaves) != 1 || leaves[0] != k {
		t.Fatalf("expand(k, 0) != [k]")
	}
}

// TestExpandEvalAgreement checks expand(k, d)[i] = eval(k, bits_msb(i, d))
// for every index of a small tree.
func TestExpandEvalAgreement(t *testing.T) {
	k := seed()
	const d = 5
	leaves := ggm.Expand(k, d)
	if len(leaves) != 1<<d {
		t.Fatalf("expected %d leaves, got %d", 1<<d, len(leaves))
	}
	for i := 0; i < 1<<d; i++ {
		bits := ggm.U16ToBV(uint16(i), d)
		got := ggm.Eval(k, bits)
		if got != leaves[i] {
			t.Fatalf("eval(k, bits_msb(%d, %d)) != expand(k, %d)[%d]", i, d, d, i)
		}
	}
}

// TestExpandRecursion checks expand(k, d) = expand(L, d-1) || expand(R, d-1).
func TestExpandRecursion(t *testing.T) {
	k := seed()
	const d = 4
	left, right := prg.Expand(k[:])
	want := append(append([][prg.Size]byte{}, ggm.Expand(left, d-1)...), ggm.Expand(right, d-1)...)
	got := ggm.Expand(k, d)
	if len(got) != len(want) {
		t.Fatalf("length mismatch")
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mismatch at leaf %d", i)
		}
	}
}

// TestU16ToBVLabeling checks the MSB-first labeling convention directly.
func TestU16ToBVLabeling(t *testing.T) {
	got := ggm.U16ToBV(0b101, 3)
	want := []byte{1, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("length mismatch")
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bit %d: got %d want %d", i, got[i], want[i])
		}
	}
}
