package merkle_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/auctionmesh/divtoken/pkg/merkle"
	"github.com/auctionmesh/divtoken/pkg/poseidon"
)

func randField(t *testing.T, seed int64) *big.Int {
	t.Helper()
	return big.NewInt(seed*7919 + 1)
}

func fullLeaves(t *testing.T, height int) []*big.Int {
	t.Helper()
	n := 1 << height
	leaves := make([]*big.Int, n)
	for i := range leaves {
		leaves[i] = randField(t, int64(i))
	}
	return leaves
}

// TestTreeProofRoundTrip verifies every leaf's membership proof
// reconstructs the root, for a small full-height tree.
func TestTreeProofRoundTrip(t *testing.T) {
	const height = 6
	leaves := fullLeaves(t, height)
	tr := merkle.New(leaves, height)

	for i := range leaves {
		sib, dir := tr.Proof(i)
		if len(sib) != height || len(dir) != height {
			t.Fatalf("leaf %d: proof length mismatch", i)
		}
		if !merkle.VerifyProof(tr.LeafHash(i), sib, dir, tr.Root) {
			t.Fatalf("leaf %d: proof failed to verify", i)
		}
	}
}

// TestTreeTamperedProofFails checks a proof fails against the wrong root.
func TestTreeTamperedProofFails(t *testing.T) {
	const height = 5
	leaves := fullLeaves(t, height)
	tr := merkle.New(leaves, height)

	sib, dir := tr.Proof(3)
	wrongRoot := new(big.Int).Add(tr.Root, big.NewInt(1))
	if merkle.VerifyProof(tr.LeafHash(3), sib, dir, wrongRoot) {
		t.Fatal("proof verified against a tampered root")
	}
}

// TestEmptyTreeRoot checks an empty tree's root is the top of the zero
// hash chain.
func TestEmptyTreeRoot(t *testing.T) {
	const height = 8
	tr := merkle.New(nil, height)
	zeroHashes := merkle.PrecomputeZeroHashes(height, poseidon.ZeroLeafHash())
	if tr.Root.Cmp(zeroHashes[height]) != 0 {
		t.Fatal("empty tree root is not the zero-subtree root")
	}
}

// TestSaveLoadRoundTrip verifies binary serialization fidelity.
func TestSaveLoadRoundTrip(t *testing.T) {
	const height = 7
	leaves := fullLeaves(t, height)
	original := merkle.New(leaves, height)

	var buf bytes.Buffer
	if err := original.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := merkle.Load(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Height != original.Height {
		t.Fatalf("height: got %d want %d", loaded.Height, original.Height)
	}
	if loaded.Root.Cmp(original.Root) != 0 {
		t.Fatal("root mismatch after round trip")
	}
	for i := 0; i < len(leaves); i += 17 {
		sib, dir := loaded.Proof(i)
		if !merkle.VerifyProof(loaded.LeafHash(i), sib, dir, loaded.Root) {
			t.Fatalf("leaf %d: proof failed after round trip", i)
		}
	}
}

// TestProofFromMatchesProofAtLevelZero checks ProofFrom(0, i) agrees with
// the Proof(i) shorthand.
func TestProofFromMatchesProofAtLevelZero(t *testing.T) {
	const height = 6
	leaves := fullLeaves(t, height)
	tr := merkle.New(leaves, height)

	sib1, dir1 := tr.Proof(5)
	sib2, dir2 := tr.ProofFrom(0, 5)
	if len(sib1) != len(sib2) {
		t.Fatalf("length mismatch: %d vs %d", len(sib1), len(sib2))
	}
	for i := range sib1 {
		if sib1[i].Cmp(sib2[i]) != 0 || dir1[i] != dir2[i] {
			t.Fatalf("entry %d differs between Proof and ProofFrom", i)
		}
	}
}

// TestProofFromInternalNodeVerifies checks a coin proving an internal
// subtree node (rather than a leaf) reconstructs the root from that node's
// value and its shorter sibling path.
func TestProofFromInternalNodeVerifies(t *testing.T) {
	const height = 6
	leaves := fullLeaves(t, height)
	tr := merkle.New(leaves, height)

	for level := 0; level <= height; level++ {
		index := 1 % (1 << (height - level))
		sib, dir := tr.ProofFrom(level, index)
		if len(sib) != height-level {
			t.Fatalf("level %d: proof length mismatch: got %d want %d", level, len(sib), height-level)
		}
		nodeValue := tr.NodeValue(level, index)
		if !merkle.VerifyProof(nodeValue, sib, dir, tr.Root) {
			t.Fatalf("level %d index %d: internal node proof failed to verify", level, index)
		}
	}
}

// TestNodeValueUnfilledPositionIsZeroHash checks a never-inserted position
// past the real leaves resolves to the padding hash.
func TestNodeValueUnfilledPositionIsZeroHash(t *testing.T) {
	const height = 4
	tr := merkle.New(fullLeaves(t, 2), height) // only fills 4 of 16 leaves
	zeroHashes := merkle.PrecomputeZeroHashes(height, poseidon.ZeroLeafHash())

	if tr.NodeValue(0, 15).Cmp(zeroHashes[0]) != 0 {
		t.Fatal("unfilled leaf should resolve to the zero leaf hash")
	}
}
