package issuer_test

import (
	"sync"
	"testing"

	"github.com/auctionmesh/divtoken/config"
	"github.com/auctionmesh/divtoken/pkg/issuer"
	"github.com/auctionmesh/divtoken/pkg/wallet"
)

// newIssuedWallet runs a full issue/issue_process round trip against a
// fresh issuer and returns both, ready for Spend/Redeem calls.
func newIssuedWallet(t *testing.T) (*issuer.Issuer, *wallet.Wallet) {
	t.Helper()

	iss, err := issuer.New("")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	t.Cleanup(func() {
		if err := iss.Close(); err != nil {
			t.Fatalf("close issuer: %v", err)
		}
	})

	w := wallet.New()
	issueReq, err := w.IssueRequest()
	if err != nil {
		t.Fatalf("issue request: %v", err)
	}

	issueResp, err := iss.Issue(issueReq)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := w.IssueProcess(issueResp, iss.Params); err != nil {
		t.Fatalf("issue process: %v", err)
	}

	return iss, w
}

// TestSingleLeafRedeem covers spec scenario S1: spend value 1, which
// decomposes to one denom = L coin, and expect the bundle to redeem.
func TestSingleLeafRedeem(t *testing.T) {
	iss, w := newIssuedWallet(t)

	req, err := w.Spend(iss.Params, 1)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if len(req.Coins) != 1 {
		t.Fatalf("expected 1 coin, got %d", len(req.Coins))
	}
	if req.Coins[0].Denom != config.MaxWalletHeight {
		t.Fatalf("expected denom %d, got %d", config.MaxWalletHeight, req.Coins[0].Denom)
	}

	resp := iss.Redeem(req)
	if !resp.Valid {
		t.Fatal("expected single-leaf redeem to succeed")
	}
}

// TestMultiCoinDecomposition covers spec scenario S3-style multi-coin
// spends: spending a value with several set bits yields one coin per bit,
// and every coin redeems together.
func TestMultiCoinDecomposition(t *testing.T) {
	iss, w := newIssuedWallet(t)

	const v = 5 // 0b101: denom L coin + denom L-2 coin
	req, err := w.Spend(iss.Params, v)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if len(req.Coins) != 2 {
		t.Fatalf("expected 2 coins for value %d, got %d", v, len(req.Coins))
	}

	resp := iss.Redeem(req)
	if !resp.Valid {
		t.Fatal("expected multi-coin redeem to succeed")
	}
}

// TestDoubleSpendRejected covers spec scenario S2: redeeming the same
// bundle twice must succeed exactly once.
func TestDoubleSpendRejected(t *testing.T) {
	iss, w := newIssuedWallet(t)

	req, err := w.Spend(iss.Params, 1)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}

	first := iss.Redeem(req)
	if !first.Valid {
		t.Fatal("expected first redeem to succeed")
	}

	second := iss.Redeem(req)
	if second.Valid {
		t.Fatal("expected second redeem of the same coin to be rejected")
	}
}

// TestTamperedInstanceRejected covers spec scenario S5: mutating a coin's
// instance bytes after proving must fail Groth16 public-input verification.
func TestTamperedInstanceRejected(t *testing.T) {
	iss, w := newIssuedWallet(t)

	req, err := w.Spend(iss.Params, 1)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}

	tampered := append([]byte(nil), req.Coins[0].InstanceBytes...)
	tampered[0] ^= 0xFF
	req.Coins[0].InstanceBytes = tampered

	resp := iss.Redeem(req)
	if resp.Valid {
		t.Fatal("expected tampered-instance redeem to be rejected")
	}
}

// TestConcurrentRedeemSameCoin covers spec scenario S6: two concurrent
// redeems of the same single-leaf coin must see exactly one success.
func TestConcurrentRedeemSameCoin(t *testing.T) {
	iss, w := newIssuedWallet(t)

	req, err := w.Spend(iss.Params, 1)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = iss.Redeem(req).Valid
		}()
	}
	wg.Wait()

	successes := 0
	for _, ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success among concurrent redeems, got %d", successes)
	}
}
