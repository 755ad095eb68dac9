package sap

import "testing"

func TestIssueRedeemRoundTrip(t *testing.T) {
	params := NewParams()
	sk, pk, err := GenerateKey(params)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tok, blinded, err := NewToken(params)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	signed := Sign(sk, blinded)
	unblinded := Unblind(params, tok, signed)

	if !Redeem(params, sk, unblinded) {
		t.Fatalf("unblinded token should redeem under the issuing key")
	}
	_ = pk
}

func TestRedeemRejectsWrongKey(t *testing.T) {
	params := NewParams()
	sk, _, err := GenerateKey(params)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherSK, _, err := GenerateKey(params)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tok, blinded, err := NewToken(params)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	signed := Sign(sk, blinded)
	unblinded := Unblind(params, tok, signed)

	if Redeem(params, otherSK, unblinded) {
		t.Fatalf("token signed under sk must not redeem under a different secret")
	}
}

func TestClientServerBatch(t *testing.T) {
	srv, err := NewServer("")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	params := NewParams()
	client := NewClient(params)

	req, err := client.IssueRequest(4)
	if err != nil {
		t.Fatalf("issue request: %v", err)
	}

	resp := srv.Issue(req)
	if err := client.IssueProcess(resp); err != nil {
		t.Fatalf("issue process: %v", err)
	}

	redeemReq := client.RedeemRequest(WinNotice{Price: 42})
	redeemResp := srv.Redeem(redeemReq)
	if !redeemResp.Valid {
		t.Fatalf("expected fresh batch to redeem successfully")
	}

	// Second redemption of the same batch must fail (single-use).
	redeemResp2 := srv.Redeem(redeemReq)
	if redeemResp2.Valid {
		t.Fatalf("expected double-spent batch to be rejected")
	}
}
