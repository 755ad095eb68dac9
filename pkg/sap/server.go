package sap

import (
	"fmt"
	"math/big"

	"github.com/auctionmesh/divtoken/pkg/doublespend"
	"github.com/auctionmesh/divtoken/pkg/field"
)

// Server is the issuer side of the VOPRF baseline: it holds the secret
// scalar and an exact double-spend index over token preimages, reusing
// the same Badger/Bloom-backed pkg/doublespend the DAP issuer uses for its
// leaf index (preimages are reduced to field elements purely to share that
// index's key type; no SMT or Poseidon semantics carry over).
type Server struct {
	params Params
	sk     *big.Int
	pk     BlindedToken
	spent  *doublespend.Index
}

// NewServer runs key generation and opens a double-spend index at dbDir
// (""  for in-memory).
func NewServer(dbDir string) (*Server, error) {
	params := NewParams()
	sk, pk, err := GenerateKey(params)
	if err != nil {
		return nil, err
	}
	idx, err := doublespend.Open(dbDir)
	if err != nil {
		return nil, fmt.Errorf("sap: open double-spend index: %w", err)
	}
	return &Server{params: params, sk: sk, pk: pk, spent: idx}, nil
}

// Close releases the server's double-spend index.
func (s *Server) Close() error { return s.spent.Close() }

// PublicKey returns the issuer's verifying point.
func (s *Server) PublicKey() BlindedToken { return s.pk }

// Issue signs every blinded token in the request.
func (s *Server) Issue(req IssueRequest) IssueResponse {
	signed := make([]SignedToken, len(req.BlindedTokens))
	for i, bt := range req.BlindedTokens {
		signed[i] = Sign(s.sk, bt)
	}
	return IssueResponse{SignedTokens: signed}
}

// Redeem verifies and stages every coin in the bundle, committing all of
// them only if every one passes — the same all-or-nothing bundle
// semantics as the DAP issuer's Redeem.
func (s *Server) Redeem(req RedeemRequest) RedeemResponse {
	batch := s.spent.NewBatch()

	for _, coin := range req.Coins {
		if !Redeem(s.params, s.sk, coin) {
			batch.Abort()
			return RedeemResponse{Valid: false}
		}

		key := field.FromBytesModOrder(coin.Preimage[:])
		spent, err := batch.CheckAndStage(key)
		if err != nil || spent {
			batch.Abort()
			return RedeemResponse{Valid: false}
		}
	}

	if err := batch.Commit(); err != nil {
		return RedeemResponse{Valid: false}
	}
	return RedeemResponse{Valid: true}
}
