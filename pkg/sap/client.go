package sap

import "fmt"

// Client holds a single batch of tokens across one issue/redeem cycle. A
// fresh Client should be built per wallet, not reused across unrelated
// batches, mirroring the single-owner discipline pkg/wallet follows for DAP.
type Client struct {
	params Params

	tokens        []Token
	blindedTokens []BlindedToken
	unblinded     []UnblindedToken
}

// NewClient builds a Client bound to params.
func NewClient(params Params) *Client {
	return &Client{params: params}
}

// IssueRequest samples n fresh tokens and returns their blinded forms for signing.
func (c *Client) IssueRequest(n int) (IssueRequest, error) {
	c.tokens = make([]Token, 0, n)
	c.blindedTokens = make([]BlindedToken, 0, n)

	for i := 0; i < n; i++ {
		tok, blinded, err := NewToken(c.params)
		if err != nil {
			return IssueRequest{}, fmt.Errorf("sap: client issue request: %w", err)
		}
		c.tokens = append(c.tokens, tok)
		c.blindedTokens = append(c.blindedTokens, blinded)
	}

	return IssueRequest{BlindedTokens: c.blindedTokens}, nil
}

// IssueProcess unblinds every signed token returned by the issuer, erroring
// if the response doesn't match the outstanding request one-for-one.
func (c *Client) IssueProcess(resp IssueResponse) error {
	if len(resp.SignedTokens) != len(c.tokens) {
		return fmt.Errorf("sap: issue response has %d signed tokens, want %d", len(resp.SignedTokens), len(c.tokens))
	}

	c.unblinded = make([]UnblindedToken, len(c.tokens))
	for i, tok := range c.tokens {
		c.unblinded[i] = Unblind(c.params, tok, resp.SignedTokens[i])
	}
	return nil
}

// RedeemRequest spends every unblinded token the client currently holds.
func (c *Client) RedeemRequest(_ WinNotice) RedeemRequest {
	coins := make([]UnblindedToken, len(c.unblinded))
	copy(coins, c.unblinded)
	return RedeemRequest{Coins: coins}
}
