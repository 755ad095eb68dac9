// Package issuer implements the server side of the divisible token scheme:
// running per-height Groth16 setup at boot, signing wallet commitments,
// and verifying redeem bundles with atomic, exact double-spend enforcement.
// All user-facing redeem failures collapse to a single false verdict, per
// the error-handling policy — the specific kind is only ever logged.
package issuer

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog/log"

	"github.com/auctionmesh/divtoken/circuits/root"
	"github.com/auctionmesh/divtoken/circuits/spend"
	"github.com/auctionmesh/divtoken/config"
	"github.com/auctionmesh/divtoken/pkg/doublespend"
	"github.com/auctionmesh/divtoken/pkg/field"
	"github.com/auctionmesh/divtoken/pkg/ggm"
	"github.com/auctionmesh/divtoken/pkg/merkle"
	"github.com/auctionmesh/divtoken/pkg/message"
	"github.com/auctionmesh/divtoken/pkg/poseidon"
	"github.com/auctionmesh/divtoken/pkg/pp"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
	"github.com/auctionmesh/divtoken/pkg/setup"
)

// Issuer holds the Schnorr secret and the double-spend index, neither of
// which is ever serialized into PublicParams or handed to a client.
type Issuer struct {
	Params *pp.PublicParams
	sk     *big.Int
	spent  *doublespend.Index
}

// New runs circuit-specific Groth16 setup for every supported height
// 0..config.MaxWalletHeight and returns a ready Issuer. dbDir selects the
// double-spend index's Badger storage location; "" keeps it in-memory.
// A setup failure at any height is fatal, per the spec's error policy.
func New(dbDir string) (*Issuer, error) {
	sk, pk, err := schnorr.GenerateKey(schnorr.NewParams())
	if err != nil {
		return nil, fmt.Errorf("issuer: generate key: %w", err)
	}

	params, err := setup.BuildPublicParams(config.MaxWalletHeight, sk)
	if err != nil {
		return nil, fmt.Errorf("issuer: setup failed, refusing to start: %w", err)
	}
	params.IssuerPK = pk

	idx, err := doublespend.Open(dbDir)
	if err != nil {
		return nil, fmt.Errorf("issuer: open double-spend index: %w", err)
	}

	return &Issuer{Params: params, sk: sk, spent: idx}, nil
}

// Close releases the issuer's double-spend index.
func (iss *Issuer) Close() error {
	return iss.spent.Close()
}

// Issue signs the client's commitment under the issuer's Schnorr secret.
func (iss *Issuer) Issue(req message.IssueRequest) (message.IssueResponse, error) {
	com, err := req.Field()
	if err != nil {
		return message.IssueResponse{}, fmt.Errorf("malformed issue request: %w", err)
	}

	sig, err := schnorr.Sign(iss.Params.Schnorr, iss.sk, com)
	if err != nil {
		return message.IssueResponse{}, fmt.Errorf("issuer: sign: %w", err)
	}

	return message.NewIssueResponse(sig), nil
}

// Redeem verifies every coin in the bundle and, only if all are valid and
// none double-spends, commits their leaves atomically. A single invalid
// coin fails the entire bundle and leaves no double-spend state changed.
func (iss *Issuer) Redeem(req message.RedeemRequest) message.RedeemResponse {
	batch := iss.spent.NewBatch()

	for i, coin := range req.Coins {
		if err := iss.validateAndStage(batch, coin); err != nil {
			log.Warn().Err(err).Int("coin_index", i).Uint8("denom", coin.Denom).Msg("redeem bundle rejected")
			batch.Abort()
			return message.RedeemResponse{Valid: false}
		}
	}

	if err := batch.Commit(); err != nil {
		log.Warn().Err(err).Msg("redeem bundle commit failed")
		return message.RedeemResponse{Valid: false}
	}

	return message.RedeemResponse{Valid: true}
}

// validateAndStage performs the four checks the spec's redeem operation
// requires for one coin, staging its leaves into batch only if all pass.
func (iss *Issuer) validateAndStage(batch *doublespend.Batch, coin message.Coin) error {
	instance, err := coin.Instance()
	if err != nil {
		return fmt.Errorf("malformed instance: %w", err)
	}

	h := int(coin.Denom)
	vk, ok := iss.Params.VerifyingKeys[h]
	if !ok {
		return fmt.Errorf("no verifying key for denomination %d", h)
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(coin.ProofBytes)); err != nil {
		return fmt.Errorf("malformed proof bytes: %w", err)
	}

	publicAssignment := iss.publicAssignment(h, instance)
	publicWitness, err := frontend.NewWitness(publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return fmt.Errorf("invalid groth16 proof: %w", err)
	}

	if len(coin.Key) != config.KeySize {
		return fmt.Errorf("malformed coin key length %d", len(coin.Key))
	}
	var key [config.KeySize]byte
	copy(key[:], coin.Key)

	subtreeHeight := config.MaxWalletHeight - h
	rawLeaves := ggm.Expand(key, subtreeHeight)
	if len(rawLeaves) == 0 {
		return fmt.Errorf("coin denomination %d expands to no leaves", h)
	}

	leafFields := make([]*big.Int, len(rawLeaves))
	for i, leafBytes := range rawLeaves {
		leafFields[i] = field.FromBytesModOrder(leafBytes[:])
	}

	// The subtree root rebuilt independently from the GGM-expanded leaves
	// must equal the coin's proved instance — this, not a bare leaves[0]
	// comparison, is what binds a denomination-h coin's key to the Merkle
	// node its proof actually covers (a one-leaf subtree, h == L, happens to
	// make the two checks coincide).
	subtree := merkle.New(leafFields, subtreeHeight)
	if subtree.Root.Cmp(instance) != 0 {
		return fmt.Errorf("coin key/instance mismatch: subtree root built from GGM.expand(key, %d) != instance", subtreeHeight)
	}

	for _, leafField := range leafFields {
		leafHash := poseidon.LeafHash(leafField)
		spent, err := batch.CheckAndStage(leafHash)
		if err != nil {
			return fmt.Errorf("double-spend check: %w", err)
		}
		if spent {
			return fmt.Errorf("double-spend detected")
		}
	}

	return nil
}

// publicAssignment builds a circuit struct carrying only the public
// instance value, for public-witness extraction at verification time —
// the server never has (and never needs) the private witness material a
// prover used.
func (iss *Issuer) publicAssignment(h int, instance *big.Int) frontend.Circuit {
	if h == 0 {
		return &root.Circuit{Root: instance}
	}
	c := spend.NewCircuit(h, nil, nil, nil, nil)
	c.Leaf = instance
	return c
}
