// Package doublespend implements the issuer's double-spend index: an
// exact, Badger-backed set of already-redeemed leaf field elements, with
// an in-process Bloom filter consulted only as a fast pre-check (never as
// the source of truth, so a Bloom false-positive can never cause a false
// accept). Inserts for one redeem bundle are staged and committed
// atomically, so a concurrent redeem can never observe a partial bundle.
package doublespend

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/dgraph-io/badger/v4"

	"github.com/auctionmesh/divtoken/pkg/field"
)

// bloomBits is the Bloom filter's bit-array size; tuned for a low false
// positive rate across a few million leaves, the Badger lookup being the
// authority regardless of Bloom outcome.
const bloomBits = 1 << 24

// Index is the server's single write point for spent leaves.
type Index struct {
	db *badger.DB

	mu    sync.RWMutex
	bloom *bitset.BitSet
}

// Open creates or opens a Badger-backed index at dir. Pass "" for an
// in-memory-only index (suitable for tests and benchmarks).
func Open(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("doublespend: open badger: %w", err)
	}

	return &Index{
		db:    db,
		bloom: bitset.New(bloomBits),
	}, nil
}

// Close releases the underlying Badger database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func leafKey(leaf *big.Int) []byte {
	b := field.EncodeCanonicalLE(leaf)
	return b[:]
}

func bloomSlots(key []byte) (uint32, uint32) {
	var h1, h2 uint32
	for i, b := range key {
		h1 = h1*31 + uint32(b)
		h2 = h2*37 + uint32(b) + uint32(i)
	}
	return h1 % bloomBits, h2 % bloomBits
}

// maybeContains reports whether key might already be in the index. A false
// result is conclusive (the key is definitely absent); a true result
// requires the authoritative Badger lookup to confirm.
func (idx *Index) maybeContains(key []byte) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, b := bloomSlots(key)
	return idx.bloom.Test(uint(a)) && idx.bloom.Test(uint(b))
}

func (idx *Index) markBloom(key []byte) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	a, b := bloomSlots(key)
	idx.bloom.Set(uint(a))
	idx.bloom.Set(uint(b))
}

// Contains reports whether leaf has already been recorded as spent.
func (idx *Index) Contains(leaf *big.Int) (bool, error) {
	key := leafKey(leaf)
	if !idx.maybeContains(key) {
		return false, nil
	}

	var found bool
	err := idx.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("doublespend: lookup: %w", err)
	}
	return found, nil
}

// Batch stages a set of leaves for atomic acceptance: every leaf not
// already spent is checked with CheckAndStage, and only if every one in
// the bundle passes does the caller call Commit — giving the
// all-or-nothing guarantee the server's redeem operation requires.
type Batch struct {
	idx    *Index
	keys   [][]byte
	txn    *badger.Txn
	closed bool
}

// NewBatch opens a staging transaction for one redeem bundle.
func (idx *Index) NewBatch() *Batch {
	return &Batch{idx: idx, txn: idx.db.NewTransaction(true)}
}

// CheckAndStage checks leaf is not already spent (against both the
// uncommitted keys already staged in this batch and the committed index),
// and if so stages it for insertion. It does not write to Badger until
// Commit is called, so a later leaf in the same bundle failing its own
// check leaves nothing partially visible.
func (b *Batch) CheckAndStage(leaf *big.Int) (alreadySpent bool, err error) {
	key := leafKey(leaf)

	for _, staged := range b.keys {
		if string(staged) == string(key) {
			return true, nil
		}
	}

	_, err = b.txn.Get(key)
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		// not spent yet
	default:
		return false, fmt.Errorf("doublespend: batch check: %w", err)
	}

	if err := b.txn.Set(key, []byte{1}); err != nil {
		return false, fmt.Errorf("doublespend: batch stage: %w", err)
	}
	b.keys = append(b.keys, key)
	return false, nil
}

// Commit writes every staged leaf in one Badger transaction, making them
// all visible to subsequent Contains/CheckAndStage calls atomically.
func (b *Batch) Commit() error {
	if b.closed {
		return fmt.Errorf("doublespend: batch already closed")
	}
	b.closed = true

	if err := b.txn.Commit(); err != nil {
		return fmt.Errorf("doublespend: batch commit: %w", err)
	}
	for _, key := range b.keys {
		b.idx.markBloom(key)
	}
	return nil
}

// Abort discards every staged leaf without writing anything.
func (b *Batch) Abort() {
	if b.closed {
		return
	}
	b.closed = true
	b.txn.Discard()
}
