package spend_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/auctionmesh/divtoken/circuits/spend"
	"github.com/auctionmesh/divtoken/pkg/merkle"
	"github.com/auctionmesh/divtoken/pkg/poseidon"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
	"github.com/auctionmesh/divtoken/pkg/setup"
)

// proveAndVerify builds the witness for a spend circuit assignment, then
// proves and verifies it against an already compiled circuit and its keys,
// mirroring the file-storage system's own proveAndVerify helper.
func proveAndVerify(t *testing.T, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, assignment *spend.Circuit) {
	t.Helper()

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}

	publicWitness, err := witness.Public()
	if err != nil {
		t.Fatalf("extract public witness: %v", err)
	}

	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSpendCircuitEndToEnd(t *testing.T) {
	const height = 4

	schnorrParams := schnorr.NewParams()
	sk, pk, err := schnorr.GenerateKey(schnorrParams)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pkX := pk.X.BigInt(new(big.Int))
	pkY := pk.Y.BigInt(new(big.Int))
	baseX := schnorrParams.Curve.Base.X.BigInt(new(big.Int))
	baseY := schnorrParams.Curve.Base.Y.BigInt(new(big.Int))

	circuit := spend.NewCircuit(height, pkX, pkY, baseX, baseY)
	ccs, err := setup.CompileCircuit(circuit)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	provingKey, verifyingKey, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	leaves := make([]*big.Int, 1<<height)
	for i := range leaves {
		leaves[i] = big.NewInt(int64(i)*31 + 7)
	}
	tree := merkle.New(leaves, height)

	const leafIndex = 6
	siblings, directions := tree.Proof(leafIndex)

	open := big.NewInt(424242)
	com := poseidon.Hash(tree.Root, open)
	sig, err := schnorr.Sign(schnorrParams, sk, com)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	assignment, err := spend.BuildWitness(height, spend.Assignment{
		Leaf:       tree.LeafHash(leafIndex),
		Root:       tree.Root,
		Open:       open,
		Com:        com,
		Sig:        sig,
		Siblings:   siblings,
		Directions: directions,
	})
	if err != nil {
		t.Fatalf("build witness: %v", err)
	}

	proveAndVerify(t, ccs, provingKey, verifyingKey, assignment)
}

func TestSpendCircuitInternalNodeEndToEnd(t *testing.T) {
	const height = 4
	const level = 2 // proving a 2^level = 4-leaf subtree's root

	schnorrParams := schnorr.NewParams()
	sk, pk, err := schnorr.GenerateKey(schnorrParams)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pkX := pk.X.BigInt(new(big.Int))
	pkY := pk.Y.BigInt(new(big.Int))
	baseX := schnorrParams.Curve.Base.X.BigInt(new(big.Int))
	baseY := schnorrParams.Curve.Base.Y.BigInt(new(big.Int))

	depth := height - level
	circuit := spend.NewCircuit(depth, pkX, pkY, baseX, baseY)
	ccs, err := setup.CompileCircuit(circuit)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	provingKey, verifyingKey, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	leaves := make([]*big.Int, 1<<height)
	for i := range leaves {
		leaves[i] = big.NewInt(int64(i)*17 + 3)
	}
	tree := merkle.New(leaves, height)

	const index = 1
	siblings, directions := tree.ProofFrom(level, index)
	nodeValue := tree.NodeValue(level, index)

	open := big.NewInt(99)
	com := poseidon.Hash(tree.Root, open)
	sig, err := schnorr.Sign(schnorrParams, sk, com)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	assignment, err := spend.BuildWitness(depth, spend.Assignment{
		Leaf:       nodeValue,
		Root:       tree.Root,
		Open:       open,
		Com:        com,
		Sig:        sig,
		Siblings:   siblings,
		Directions: directions,
	})
	if err != nil {
		t.Fatalf("build witness: %v", err)
	}

	proveAndVerify(t, ccs, provingKey, verifyingKey, assignment)
}

func TestSpendCircuitRejectsWrongPath(t *testing.T) {
	const height = 4

	schnorrParams := schnorr.NewParams()
	sk, pk, err := schnorr.GenerateKey(schnorrParams)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pkX := pk.X.BigInt(new(big.Int))
	pkY := pk.Y.BigInt(new(big.Int))
	baseX := schnorrParams.Curve.Base.X.BigInt(new(big.Int))
	baseY := schnorrParams.Curve.Base.Y.BigInt(new(big.Int))

	circuit := spend.NewCircuit(height, pkX, pkY, baseX, baseY)
	ccs, err := setup.CompileCircuit(circuit)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	provingKey, _, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	leaves := make([]*big.Int, 1<<height)
	for i := range leaves {
		leaves[i] = big.NewInt(int64(i)*31 + 7)
	}
	tree := merkle.New(leaves, height)

	// Build a proof for leaf 6 but claim leaf 7's hash as the witnessed leaf.
	siblings, directions := tree.Proof(6)

	open := big.NewInt(1)
	com := poseidon.Hash(tree.Root, open)
	sig, err := schnorr.Sign(schnorrParams, sk, com)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	assignment, err := spend.BuildWitness(height, spend.Assignment{
		Leaf:       tree.LeafHash(7),
		Root:       tree.Root,
		Open:       open,
		Com:        com,
		Sig:        sig,
		Siblings:   siblings,
		Directions: directions,
	})
	if err != nil {
		t.Fatalf("build witness: %v", err)
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}
	if _, err := groth16.Prove(ccs, provingKey, witness); err == nil {
		t.Fatal("expected proving to fail for a mismatched Merkle path")
	}
}
