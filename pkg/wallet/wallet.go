// Package wallet implements the client side of the divisible token scheme:
// building a fresh issuance commitment, validating the issuer's signature,
// and decomposing a spend value into disjoint GGM subtrees, each proved by
// a Groth16 coin and assembled into a redeem bundle. Proof generation for
// the coins in one bundle is parallelized with golang.org/x/sync/errgroup,
// mirroring the teacher's habit of spreading CPU-bound batch work across a
// worker pool sized to the batch itself.
package wallet

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/sync/errgroup"

	"github.com/auctionmesh/divtoken/circuits/root"
	"github.com/auctionmesh/divtoken/circuits/spend"
	"github.com/auctionmesh/divtoken/config"
	"github.com/auctionmesh/divtoken/pkg/field"
	"github.com/auctionmesh/divtoken/pkg/ggm"
	"github.com/auctionmesh/divtoken/pkg/merkle"
	"github.com/auctionmesh/divtoken/pkg/message"
	"github.com/auctionmesh/divtoken/pkg/poseidon"
	"github.com/auctionmesh/divtoken/pkg/pp"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// Wallet is the client-side record binding one signed Merkle root to the
// GGM seed and opening randomness that produced it. It is mutated only by
// its single owning task at a time; no internal locking is required beyond
// that discipline (per the design note on shared wallet state).
type Wallet struct {
	Seed   [config.SeedSize]byte
	Leaves []*big.Int
	Tree   *merkle.Tree
	Root   *big.Int
	Open   *big.Int
	Com    *big.Int
	Sig    *schnorr.Signature // nil until issue_process succeeds

	nextOffset int // cumulative leaves spent so far, always a prefix of [0, TotalLeaves)
}

// New allocates an empty wallet, ready for IssueRequest.
func New() *Wallet {
	return &Wallet{}
}

// IssueRequest samples a fresh seed, expands it into 2^L leaves, builds the
// SMT, commits to the root with fresh randomness, and returns the
// serialized commitment to send to the issuer.
func (w *Wallet) IssueRequest() (message.IssueRequest, error) {
	var seed [config.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return message.IssueRequest{}, fmt.Errorf("wallet: sample seed: %w", err)
	}

	expanded := ggm.Expand(seed, config.MaxWalletHeight)
	leaves := make([]*big.Int, len(expanded))
	for i, b := range expanded {
		leaves[i] = field.FromBytesModOrder(b[:])
	}

	tree := merkle.New(leaves, config.MaxWalletHeight)

	open, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
	if err != nil {
		return message.IssueRequest{}, fmt.Errorf("wallet: sample opening: %w", err)
	}
	com := poseidon.Hash(tree.Root, open)

	w.Seed = seed
	w.Leaves = leaves
	w.Tree = tree
	w.Root = tree.Root
	w.Open = open
	w.Com = com
	w.Sig = nil
	w.nextOffset = 0

	return message.NewIssueRequest(com), nil
}

// IssueProcess validates the issuer's signature over the wallet's
// commitment and, only if it verifies, stores it. A failed verification is
// fatal to the wallet entry: the caller should discard it and retry
// issuance from scratch.
func (w *Wallet) IssueProcess(resp message.IssueResponse, params *pp.PublicParams) error {
	sig := resp.Signature()
	if !schnorr.Verify(params.Schnorr, params.IssuerPK, w.Com, sig) {
		return fmt.Errorf("wallet: issuer signature does not verify")
	}
	w.Sig = &sig
	return nil
}

// block is one canonical dyadic interval of the leaf space: size leaves
// starting at offset, size always a power of two dividing offset.
type block struct {
	offset int
	size   int
}

// decomposeRange covers [offset, offset+value) with the maximal aligned
// dyadic intervals possible, the canonical binary decomposition the spec
// calls for: at each step the block is as large as both the remaining
// value and the current offset's alignment allow.
func decomposeRange(offset, value int) []block {
	var blocks []block
	cur := offset
	remaining := value
	for remaining > 0 {
		maxBySize := highestPowerOfTwoLE(remaining)
		maxByAlign := maxBySize
		if cur != 0 {
			maxByAlign = cur & (-cur) // lowest set bit = largest power of two dividing cur
		}
		size := maxBySize
		if maxByAlign < size {
			size = maxByAlign
		}
		blocks = append(blocks, block{offset: cur, size: size})
		cur += size
		remaining -= size
	}
	return blocks
}

func highestPowerOfTwoLE(x int) int {
	return 1 << (bits.Len(uint(x)) - 1)
}

// Spend decomposes value v into the canonical set of disjoint GGM
// subtrees not yet spent from this wallet, builds one Groth16 coin per
// subtree (in parallel), and returns the assembled redeem bundle. It
// errors, without mutating the wallet's spent cursor, if v exceeds the
// wallet's remaining capacity.
func (w *Wallet) Spend(params *pp.PublicParams, v int) (message.RedeemRequest, error) {
	if w.Sig == nil {
		return message.RedeemRequest{}, fmt.Errorf("wallet: cannot spend before issue_process succeeds")
	}
	if v <= 0 {
		return message.RedeemRequest{}, fmt.Errorf("wallet: spend value must be positive")
	}
	if w.nextOffset+v > config.TotalLeaves {
		return message.RedeemRequest{}, fmt.Errorf("wallet: spend value %d exceeds remaining capacity %d", v, config.TotalLeaves-w.nextOffset)
	}

	blocks := decomposeRange(w.nextOffset, v)
	coins := make([]message.Coin, len(blocks))

	var g errgroup.Group
	for i, b := range blocks {
		i, b := i, b
		g.Go(func() error {
			coin, err := w.buildCoin(params, b)
			if err != nil {
				return fmt.Errorf("wallet: build coin for block %+v: %w", b, err)
			}
			coins[i] = coin
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return message.RedeemRequest{}, err
	}

	w.nextOffset += v
	return message.RedeemRequest{Coins: coins}, nil
}

// buildCoin proves membership of the subtree node covering b and packages
// it, along with the GGM subkey rooted at that node, into a wire Coin.
func (w *Wallet) buildCoin(params *pp.PublicParams, b block) (message.Coin, error) {
	level := bits.TrailingZeros(uint(b.size)) // subtree depth from the leaf layer
	index := b.offset / b.size
	h := config.MaxWalletHeight - level // circuit height / denom

	nodeValue := w.Tree.NodeValue(level, index)
	// The GGM subkey at this node is reached by walking h steps from the
	// seed (root), not level steps: level counts distance from the leaf
	// layer, h = L-level counts distance from the root, which is exactly
	// the GGM walking depth and the denomination the server re-derives.
	key := ggm.Eval(w.Seed, ggm.U16ToBV(uint16(index), h))

	proof, err := w.prove(params, h, level, index, nodeValue)
	if err != nil {
		return message.Coin{}, err
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return message.Coin{}, fmt.Errorf("serialize proof: %w", err)
	}

	instanceBytes := field.EncodeCanonicalLE(nodeValue)

	return message.Coin{
		Denom:         uint8(h),
		Key:           key[:],
		InstanceBytes: instanceBytes[:],
		ProofBytes:    proofBuf.Bytes(),
	}, nil
}

// prove builds the witness for height h, node (level, index), and produces
// its Groth16 proof under the matching per-height proving key.
func (w *Wallet) prove(params *pp.PublicParams, h, level, index int, nodeValue *big.Int) (groth16.Proof, error) {
	ccs, ok := params.CCS[h]
	if !ok {
		return nil, fmt.Errorf("no compiled circuit for height %d", h)
	}
	pk, ok := params.ProvingKeys[h]
	if !ok {
		return nil, fmt.Errorf("no proving key for height %d", h)
	}

	var assignment frontend.Circuit
	if h == 0 {
		assignment = root.BuildWitness(root.Assignment{
			Root: nodeValue,
			Open: w.Open,
			Com:  w.Com,
			Sig:  *w.Sig,
		})
	} else {
		siblings, directions := w.Tree.ProofFrom(level, index)
		a, err := spend.BuildWitness(h, spend.Assignment{
			Leaf:       nodeValue,
			Root:       w.Tree.Root,
			Open:       w.Open,
			Com:        w.Com,
			Sig:        *w.Sig,
			Siblings:   siblings,
			Directions: directions,
		})
		if err != nil {
			return nil, err
		}
		assignment = a
	}

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness for height %d: %w", h, err)
	}

	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove height %d: %w", h, err)
	}

	return proof, nil
}
