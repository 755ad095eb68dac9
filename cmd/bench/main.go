// Command bench drives scenarios S1-S6 from the spec's testable-properties
// section against the DAP core (pkg/issuer + pkg/wallet), and the S1, S2
// and S6 analogues against the SAP VOPRF baseline (pkg/sap), timing each
// and printing a side-by-side table — the calibration the SAP baseline
// exists for.
package main

import (
	"fmt"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/auctionmesh/divtoken/pkg/issuer"
	"github.com/auctionmesh/divtoken/pkg/sap"
	"github.com/auctionmesh/divtoken/pkg/wallet"
)

// result is one scenario's name, whether its expected outcome was observed,
// and how long it took to run.
type result struct {
	scheme   string
	scenario string
	ok       bool
	elapsed  time.Duration
}

func main() {
	var results []result

	log.Info().Msg("setting up DAP issuer (per-height Groth16 setup, this is the slow part)")
	dapStart := time.Now()
	iss, err := issuer.New("")
	if err != nil {
		log.Fatal().Err(err).Msg("DAP issuer setup failed")
	}
	defer iss.Close()
	log.Info().Dur("elapsed", time.Since(dapStart)).Msg("DAP issuer ready")

	results = append(results, runDAPScenarios(iss)...)
	results = append(results, runSAPScenarios()...)

	printResults(results)
}

func runDAPScenarios(iss *issuer.Issuer) []result {
	var out []result

	// S1: issue a wallet, spend value 1, expect valid = true.
	out = append(out, timeScenario("DAP", "S1 single-leaf spend", func() bool {
		w := wallet.New()
		req, err := w.IssueRequest()
		if err != nil {
			return false
		}
		resp, err := iss.Issue(req)
		if err != nil {
			return false
		}
		if err := w.IssueProcess(resp, iss.Params); err != nil {
			return false
		}
		spendReq, err := w.Spend(iss.Params, 1)
		if err != nil {
			return false
		}
		return iss.Redeem(spendReq).Valid
	}))

	// S2: redeem the same coin again, expect valid = false.
	out = append(out, timeScenario("DAP", "S2 replay rejected", func() bool {
		w := wallet.New()
		req, _ := w.IssueRequest()
		resp, _ := iss.Issue(req)
		_ = w.IssueProcess(resp, iss.Params)
		spendReq, _ := w.Spend(iss.Params, 1)

		first := iss.Redeem(spendReq)
		second := iss.Redeem(spendReq)
		return first.Valid && !second.Valid
	}))

	// S3: spend 2^12 - 1, expect 12 coins and valid = true.
	out = append(out, timeScenario("DAP", "S3 full decomposition", func() bool {
		w := wallet.New()
		req, _ := w.IssueRequest()
		resp, _ := iss.Issue(req)
		_ = w.IssueProcess(resp, iss.Params)

		const v = 1<<12 - 1
		spendReq, err := w.Spend(iss.Params, v)
		if err != nil || len(spendReq.Coins) != 12 {
			return false
		}
		return iss.Redeem(spendReq).Valid
	}))

	// S4: spend value 3 as two disjoint coins in one bundle (a two-leaf
	// coin and a single-leaf coin, the canonical decomposition from offset
	// 0), expect valid = true, then replaying that same bundle must fail —
	// the multi-coin analogue of S2's overlap check.
	out = append(out, timeScenario("DAP", "S4 multi-coin bundle, replay rejected", func() bool {
		w := wallet.New()
		req, _ := w.IssueRequest()
		resp, _ := iss.Issue(req)
		_ = w.IssueProcess(resp, iss.Params)

		bundle, err := w.Spend(iss.Params, 3)
		if err != nil || len(bundle.Coins) != 2 {
			return false
		}

		first := iss.Redeem(bundle)
		second := iss.Redeem(bundle)
		return first.Valid && !second.Valid
	}))

	// S5: tamper a coin's instance bytes, expect valid = false.
	out = append(out, timeScenario("DAP", "S5 tampered instance rejected", func() bool {
		w := wallet.New()
		req, _ := w.IssueRequest()
		resp, _ := iss.Issue(req)
		_ = w.IssueProcess(resp, iss.Params)

		spendReq, err := w.Spend(iss.Params, 1)
		if err != nil {
			return false
		}
		tampered := append([]byte(nil), spendReq.Coins[0].InstanceBytes...)
		tampered[0] ^= 0xFF
		spendReq.Coins[0].InstanceBytes = tampered

		return !iss.Redeem(spendReq).Valid
	}))

	// S6: two concurrent redeems of the same coin, expect exactly one success.
	out = append(out, timeScenario("DAP", "S6 concurrent redeem", func() bool {
		w := wallet.New()
		req, _ := w.IssueRequest()
		resp, _ := iss.Issue(req)
		_ = w.IssueProcess(resp, iss.Params)
		spendReq, err := w.Spend(iss.Params, 1)
		if err != nil {
			return false
		}

		var wg sync.WaitGroup
		valid := make([]bool, 2)
		for i := 0; i < 2; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				valid[i] = iss.Redeem(spendReq).Valid
			}()
		}
		wg.Wait()

		successes := 0
		for _, v := range valid {
			if v {
				successes++
			}
		}
		return successes == 1
	}))

	return out
}

func runSAPScenarios() []result {
	var out []result

	srv, err := sap.NewServer("")
	if err != nil {
		log.Fatal().Err(err).Msg("SAP server setup failed")
	}
	defer srv.Close()
	params := sap.NewParams()

	// S1 analogue: issue and redeem a single token.
	out = append(out, timeScenario("SAP", "S1 single token spend", func() bool {
		client := sap.NewClient(params)
		req, err := client.IssueRequest(1)
		if err != nil {
			return false
		}
		resp := srv.Issue(req)
		if err := client.IssueProcess(resp); err != nil {
			return false
		}
		redeemReq := client.RedeemRequest(sap.WinNotice{Price: 1})
		return srv.Redeem(redeemReq).Valid
	}))

	// S2 analogue: redeem the same batch twice.
	out = append(out, timeScenario("SAP", "S2 replay rejected", func() bool {
		client := sap.NewClient(params)
		req, _ := client.IssueRequest(1)
		resp := srv.Issue(req)
		_ = client.IssueProcess(resp)
		redeemReq := client.RedeemRequest(sap.WinNotice{Price: 1})

		first := srv.Redeem(redeemReq)
		second := srv.Redeem(redeemReq)
		return first.Valid && !second.Valid
	}))

	// S6 analogue: two concurrent redeems of the same batch.
	out = append(out, timeScenario("SAP", "S6 concurrent redeem", func() bool {
		client := sap.NewClient(params)
		req, _ := client.IssueRequest(1)
		resp := srv.Issue(req)
		_ = client.IssueProcess(resp)
		redeemReq := client.RedeemRequest(sap.WinNotice{Price: 1})

		var wg sync.WaitGroup
		valid := make([]bool, 2)
		for i := 0; i < 2; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				valid[i] = srv.Redeem(redeemReq).Valid
			}()
		}
		wg.Wait()

		successes := 0
		for _, v := range valid {
			if v {
				successes++
			}
		}
		return successes == 1
	}))

	return out
}

func timeScenario(scheme, name string, fn func() bool) result {
	start := time.Now()
	ok := fn()
	return result{scheme: scheme, scenario: name, ok: ok, elapsed: time.Since(start)}
}

func printResults(results []result) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEME\tSCENARIO\tOUTCOME\tELAPSED")
	for _, r := range results {
		outcome := "PASS"
		if !r.ok {
			outcome = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.scheme, r.scenario, outcome, r.elapsed)
	}
	tw.Flush()
}
