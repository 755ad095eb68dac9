// Package merkle implements the sparse Merkle tree (SMT) the wallet commits
// its GGM-expanded leaves into: a full binary tree of a runtime-supplied
// height, Poseidon2-hashed, with sequential leaf insertion and
// leaf-to-root membership proofs. It generalizes the file-storage SMT this
// system's conventions descend from (which fixed its depth at compile time)
// to the wallet's runtime-parameterized height: a client's L is fixed once
// at setup, but the same package serves every supported height 0..L.
package merkle

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/auctionmesh/divtoken/pkg/poseidon"
)

// Tree is a full binary tree of the given height: every leaf position
// 0..2^height-1 holds a value, real or the domain-separated padding hash.
type Tree struct {
	Root       *big.Int
	Height     int
	NumLeaves  int // number of real (non-padding) leaves supplied at construction
	Levels     []map[int]*big.Int
	ZeroHashes []*big.Int
}

// PrecomputeZeroHashes builds the zero-subtree hash chain:
//
//	zeroHashes[0] = zeroLeafHash
//	zeroHashes[i] = HashNodes(zeroHashes[i-1], zeroHashes[i-1])
func PrecomputeZeroHashes(height int, zeroLeafHash *big.Int) []*big.Int {
	zh := make([]*big.Int, height+1)
	zh[0] = new(big.Int).Set(zeroLeafHash)
	for i := 1; i <= height; i++ {
		zh[i] = poseidon.HashNodes(zh[i-1], zh[i-1])
	}
	return zh
}

// New builds a tree of the given height from leaves, inserted sequentially
// at indices 0..len(leaves)-1. Per the core edge policy, len(leaves) is
// expected to be either 0 or exactly 2^height (a fully issued wallet); a
// partial, non-power-of-two batch is accepted but no ancestor of an unfilled
// leaf beyond len(leaves) should be queried by callers outside this
// generalization.
func New(leaves []*big.Int, height int) *Tree {
	zeroHashes := PrecomputeZeroHashes(height, poseidon.ZeroLeafHash())

	levels := make([]map[int]*big.Int, height+1)
	for i := range levels {
		levels[i] = make(map[int]*big.Int)
	}

	hashed := hashLeavesParallel(leaves)
	for i, h := range hashed {
		levels[0][i] = h
	}

	for lvl := 0; lvl < height; lvl++ {
		parents := make(map[int]bool)
		for idx := range levels[lvl] {
			parents[idx/2] = true
		}
		for parentIdx := range parents {
			leftIdx := parentIdx * 2
			rightIdx := parentIdx*2 + 1

			left, ok := levels[lvl][leftIdx]
			if !ok {
				left = zeroHashes[lvl]
			}
			right, ok := levels[lvl][rightIdx]
			if !ok {
				right = zeroHashes[lvl]
			}
			levels[lvl+1][parentIdx] = poseidon.HashNodes(left, right)
		}
	}

	root, ok := levels[height][0]
	if !ok {
		root = zeroHashes[height]
	}

	return &Tree{
		Root:       root,
		Height:     height,
		NumLeaves:  len(leaves),
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}
}

// hashLeavesParallel applies poseidon.LeafHash across a worker pool sized to
// the host's CPU count, mirroring the file-storage tree's parallel leaf
// hashing — wallet trees are small (at most 2^12 leaves) but issuance
// latency still benefits from spreading the 2^L Poseidon2 leaf hashes.
func hashLeavesParallel(leaves []*big.Int) []*big.Int {
	out := make([]*big.Int, len(leaves))
	if len(leaves) == 0 {
		return out
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(leaves) {
		numWorkers = len(leaves)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	work := make(chan int, len(leaves))
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				out[i] = poseidon.LeafHash(leaves[i])
			}
		}()
	}
	for i := range leaves {
		work <- i
	}
	close(work)
	wg.Wait()

	return out
}

// Proof returns the fixed-size sibling path for leafIndex: Height entries,
// one per level, each paired with a direction (0 = current is the left
// child, sibling on the right; 1 = current is the right child, sibling on
// the left). Equivalent to ProofFrom(0, leafIndex).
func (t *Tree) Proof(leafIndex int) (siblings []*big.Int, directions []int) {
	return t.ProofFrom(0, leafIndex)
}

// ProofFrom returns the sibling path from the internal node at (level,
// index) up to the root: Height-level entries, used when a coin proves
// membership of an internal subtree node rather than a leaf (a coin of
// denomination h covers the node at level = log2(subtree size) = Height-h).
func (t *Tree) ProofFrom(level, index int) (siblings []*big.Int, directions []int) {
	length := t.Height - level
	siblings = make([]*big.Int, length)
	directions = make([]int, length)

	idx := index
	for i, lvl := 0, level; lvl < t.Height; i, lvl = i+1, lvl+1 {
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			directions[i] = 0
		} else {
			siblingIdx = idx - 1
			directions[i] = 1
		}

		sib, ok := t.Levels[lvl][siblingIdx]
		if !ok {
			sib = t.ZeroHashes[lvl]
		}
		siblings[i] = sib
		idx /= 2
	}

	return siblings, directions
}

// NodeValue returns the Poseidon2-hashed value of the node at (level,
// index), the padding hash if that position was never inserted.
func (t *Tree) NodeValue(level, index int) *big.Int {
	v, ok := t.Levels[level][index]
	if !ok {
		return t.ZeroHashes[level]
	}
	return v
}

// LeafHash returns the Poseidon2-hashed value at the given leaf index, the
// padding hash for any position beyond the supplied leaves.
func (t *Tree) LeafHash(leafIndex int) *big.Int {
	h, ok := t.Levels[0][leafIndex]
	if !ok {
		return t.ZeroHashes[0]
	}
	return h
}

// VerifyProof recomputes the root from a leaf hash and its sibling path and
// compares it against root.
func VerifyProof(leafHash *big.Int, siblings []*big.Int, directions []int, root *big.Int) bool {
	if len(siblings) != len(directions) {
		return false
	}

	current := leafHash
	for i, sib := range siblings {
		if directions[i] == 0 {
			current = poseidon.HashNodes(current, sib)
		} else {
			current = poseidon.HashNodes(sib, current)
		}
	}

	return current.Cmp(root) == 0
}

// ---------------------------------------------------------------------------
// Serialization (binary format for wallet persistence)
// ---------------------------------------------------------------------------
//
// Format:
//   uint32(height) | uint32(numLeaves)
//   For each level 0..height:
//     uint32(count)
//     For each entry: uint32(index) | [32]byte(hash, big-endian fr.Element)
//
// Zero hashes are not stored; they are recomputed from the padding domain
// tag on load.

// Save writes the tree to w in a deterministic binary format.
func (t *Tree) Save(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(t.Height)); err != nil {
		return fmt.Errorf("merkle: write height: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(t.NumLeaves)); err != nil {
		return fmt.Errorf("merkle: write numLeaves: %w", err)
	}

	for lvl := 0; lvl <= t.Height; lvl++ {
		m := t.Levels[lvl]
		if err := binary.Write(w, binary.BigEndian, uint32(len(m))); err != nil {
			return fmt.Errorf("merkle: write level %d count: %w", lvl, err)
		}

		indices := make([]int, 0, len(m))
		for idx := range m {
			indices = append(indices, idx)
		}
		sortInts(indices)

		for _, idx := range indices {
			if err := binary.Write(w, binary.BigEndian, uint32(idx)); err != nil {
				return fmt.Errorf("merkle: write level %d index %d: %w", lvl, idx, err)
			}
			var elem fr.Element
			elem.SetBigInt(m[idx])
			b := elem.Bytes()
			if _, err := w.Write(b[:]); err != nil {
				return fmt.Errorf("merkle: write level %d hash %d: %w", lvl, idx, err)
			}
		}
	}

	return nil
}

// Load reads a tree from r that was written by Save.
func Load(r io.Reader) (*Tree, error) {
	var height, numLeaves uint32
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return nil, fmt.Errorf("merkle: read height: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &numLeaves); err != nil {
		return nil, fmt.Errorf("merkle: read numLeaves: %w", err)
	}

	zeroHashes := PrecomputeZeroHashes(int(height), poseidon.ZeroLeafHash())

	levels := make([]map[int]*big.Int, height+1)
	for lvl := 0; lvl <= int(height); lvl++ {
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("merkle: read level %d count: %w", lvl, err)
		}

		m := make(map[int]*big.Int, int(count))
		var hashBuf [32]byte
		for j := 0; j < int(count); j++ {
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, fmt.Errorf("merkle: read level %d index: %w", lvl, err)
			}
			if _, err := io.ReadFull(r, hashBuf[:]); err != nil {
				return nil, fmt.Errorf("merkle: read level %d hash: %w", lvl, err)
			}
			var elem fr.Element
			elem.SetBytes(hashBuf[:])
			val := new(big.Int)
			elem.BigInt(val)
			m[int(idx)] = val
		}
		levels[lvl] = m
	}

	root, ok := levels[height][0]
	if !ok {
		root = zeroHashes[height]
	}

	return &Tree{
		Root:       root,
		Height:     int(height),
		NumLeaves:  int(numLeaves),
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
