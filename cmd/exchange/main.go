// Command exchange runs the issuer side of the divisible token scheme as a
// thin HTTP service: POST /issue, POST /redeem, plus a boot-time export of
// the issuer's public key and per-height Groth16 keys so advertisers have
// something to load before they can prove or verify anything. The transport
// here is explicitly out of core scope; it exists to exercise pkg/issuer
// end-to-end, not to be a production API gateway.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/auctionmesh/divtoken/pkg/issuer"
	"github.com/auctionmesh/divtoken/pkg/message"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
	"github.com/auctionmesh/divtoken/pkg/setup"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbDir := flag.String("db", "", "double-spend index directory (empty keeps it in-memory)")
	keyDir := flag.String("keys", "./exchange-keys", "directory to publish this run's proving/verifying keys to")
	flag.Parse()

	iss, err := issuer.New(*dbDir)
	if err != nil {
		log.Fatal().Err(err).Msg("issuer setup failed")
	}
	defer iss.Close()

	if err := setup.ExportAll(iss.Params, *keyDir); err != nil {
		log.Fatal().Err(err).Msg("export proving/verifying keys failed")
	}

	x, y := schnorr.EncodePublicKey(iss.Params.IssuerPK)
	log.Info().
		Str("issuer_x", x).
		Str("issuer_y", y).
		Str("keydir", *keyDir).
		Msg("issuer ready; advertisers need this public key and keydir before they can issue or spend")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /issue", handleIssue(iss))
	mux.HandleFunc("POST /redeem", handleRedeem(iss))

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", *addr).Msg("exchange listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("exchange server stopped")
	}
}

func handleIssue(iss *issuer.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req message.IssueRequest
		if !decodeBody(w, r, &req) {
			return
		}

		resp, err := iss.Issue(req)
		if err != nil {
			log.Warn().Err(err).Msg("issue rejected")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, resp)
	}
}

func handleRedeem(iss *issuer.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req message.RedeemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, iss.Redeem(req))
	}
}

// decodeBody reads a bounded body and decodes it as JSON into v, writing a
// generic 400 (never leaking the parse error, per the error-handling policy)
// on any failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, message.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}
