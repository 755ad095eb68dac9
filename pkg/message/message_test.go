package message

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/auctionmesh/divtoken/pkg/field"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

func TestIssueRequestRoundTrip(t *testing.T) {
	com := big.NewInt(9999)
	req := NewIssueRequest(com)

	got, err := req.Field()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cmp(com) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", got, com)
	}
}

func TestIssueResponseRoundTrip(t *testing.T) {
	sig := schnorr.Signature{S: big.NewInt(42), E: [32]byte{1, 2, 3}}
	resp := NewIssueResponse(sig)

	got := resp.Signature()
	if got.S.Cmp(sig.S) != 0 || got.E != sig.E {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sig)
	}
}

func TestIssueRequestJSONShape(t *testing.T) {
	req := NewIssueRequest(big.NewInt(1))
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTrip IssueRequest
	if err := json.Unmarshal(b, &roundTrip); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(roundTrip.Com) != 32 {
		t.Fatalf("expected 32-byte com, got %d", len(roundTrip.Com))
	}
}

func TestDecodeBodyRejectsOversized(t *testing.T) {
	big := make([]byte, MaxBodySize+1)
	var v IssueRequest
	if err := DecodeBody(big, &v); err == nil {
		t.Fatalf("expected oversized body to be rejected")
	}
}

func TestCoinInstanceRoundTrip(t *testing.T) {
	value := big.NewInt(123)
	enc := field.EncodeCanonicalLE(value)

	c := Coin{InstanceBytes: enc[:]}
	got, err := c.Instance()
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	if got.Cmp(value) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", got, value)
	}
}
