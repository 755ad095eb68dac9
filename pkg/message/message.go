// Package message defines the JSON boundary value objects exchanged between
// wallet and issuer: IssueRequest/IssueResponse for the issuance round trip
// and RedeemRequest/RedeemResponse for spending, each field-element byte
// slice encoded per pkg/field's canonical little-endian convention.
package message

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/auctionmesh/divtoken/pkg/field"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// MaxBodySize is the maximum accepted JSON request body, in bytes.
const MaxBodySize = 16 * 1024

// IssueRequest carries the client's commitment to a freshly built wallet.
type IssueRequest struct {
	Com []byte `json:"com"`
}

// NewIssueRequest encodes com into an IssueRequest wire message.
func NewIssueRequest(com *big.Int) IssueRequest {
	b := field.EncodeCanonicalLE(com)
	return IssueRequest{Com: b[:]}
}

// Field decodes Com back into a field element, rejecting non-canonical encodings.
func (r IssueRequest) Field() (*big.Int, error) {
	return field.DecodeCanonicalLE(r.Com)
}

// SignatureWire is the wire encoding of a Schnorr signature: the inner-curve
// scalar response and the 32-byte Poseidon challenge, named per spec.
type SignatureWire struct {
	ProverResponse    []byte   `json:"prover_response"`
	VerifierChallenge [32]byte `json:"verifier_challenge"`
}

// IssueResponse carries the issuer's signature over the client's commitment.
type IssueResponse struct {
	Sig SignatureWire `json:"sig"`
}

// NewIssueResponse encodes a native Signature into wire form.
func NewIssueResponse(sig schnorr.Signature) IssueResponse {
	return IssueResponse{Sig: SignatureWire{
		ProverResponse:    sig.S.Bytes(),
		VerifierChallenge: sig.E,
	}}
}

// Signature decodes the wire signature back into native form.
func (r IssueResponse) Signature() schnorr.Signature {
	return schnorr.Signature{
		S: new(big.Int).SetBytes(r.Sig.ProverResponse),
		E: r.Sig.VerifierChallenge,
	}
}

// Coin is a single spendable unit: a Groth16 proof over the circuit of
// height denom, plus the GGM subkey rooted at the proved node.
type Coin struct {
	Denom         uint8  `json:"denom"`
	Key           []byte `json:"key"`
	InstanceBytes []byte `json:"instance_bytes"`
	ProofBytes    []byte `json:"proof_bytes"`
}

// Instance decodes InstanceBytes into a field element.
func (c Coin) Instance() (*big.Int, error) {
	return field.DecodeCanonicalLE(c.InstanceBytes)
}

// RedeemRequest bundles the coins an advertiser is spending in one atomic request.
type RedeemRequest struct {
	Coins []Coin `json:"coins"`
}

// RedeemResponse never reveals why a bundle failed, per the error-handling
// policy: a single boolean, nothing else.
type RedeemResponse struct {
	Valid bool `json:"valid"`
}

// WinNotice is the advertiser-facing trigger for client-side redeem
// generation, posted to /win by a publisher reporting an auction outcome.
type WinNotice struct {
	Price uint16 `json:"price"`
}

// DecodeBody unmarshals a bounded request body into v, rejecting bodies
// larger than MaxBodySize before attempting to parse them.
func DecodeBody(body []byte, v interface{}) error {
	if len(body) > MaxBodySize {
		return fmt.Errorf("message: body exceeds %d bytes", MaxBodySize)
	}
	return json.Unmarshal(body, v)
}
