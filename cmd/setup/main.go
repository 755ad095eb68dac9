// Command setup runs Groth16 key generation for one wallet-height circuit:
// either a single-party dev setup (generates its own throwaway issuer key,
// NOT for production) or the multi-party MPC ceremony, phase by phase,
// against a fixed issuer public key supplied on disk.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"

	"github.com/auctionmesh/divtoken/circuits/root"
	"github.com/auctionmesh/divtoken/circuits/spend"
	"github.com/auctionmesh/divtoken/config"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
	"github.com/auctionmesh/divtoken/pkg/setup"
	"github.com/consensys/gnark/frontend"
)

// issuerKeyFile holds the fixed issuer public key every ceremony
// participant must compile the circuit against, so every contribution is
// proving/verifying the same circuit.
const issuerKeyFile = "issuer_pubkey.json"

type issuerPubKey struct {
	X string `json:"x"`
	Y string `json:"y"`
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	height, err := strconv.Atoi(os.Args[1])
	if err != nil || height < 0 || height > config.MaxWalletHeight {
		fmt.Fprintf(os.Stderr, "invalid height %q: must be an integer in [0, %d]\n", os.Args[1], config.MaxWalletHeight)
		os.Exit(1)
	}

	switch os.Args[2] {
	case "dev":
		if err := devSetup(height); err != nil {
			log.Fatal(err)
		}
	case "ceremony":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		if err := handleCeremony(height, os.Args[3:]); err != nil {
			log.Fatal(err)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

// devSetup generates a throwaway issuer key and runs single-party Groth16
// setup for height, for local development only.
func devSetup(height int) error {
	schnorrParams := schnorr.NewParams()
	_, pk, err := schnorr.GenerateKey(schnorrParams)
	if err != nil {
		return fmt.Errorf("generate dev issuer key: %w", err)
	}

	circuit := circuitForHeight(height, schnorrParams, pk)
	return setup.DevSetup(circuit, ".", height)
}

// handleCeremony dispatches one MPC ceremony subcommand against the fixed
// issuer public key in issuerKeyFile (written once by the coordinator
// before p1-init, via writeIssuerKey).
func handleCeremony(height int, args []string) error {
	schnorrParams := schnorr.NewParams()

	switch args[0] {
	case "init-key":
		return writeIssuerKey(schnorrParams)
	case "p1-init":
		pk, err := readIssuerKey()
		if err != nil {
			return err
		}
		return setup.CeremonyP1Init(circuitForHeight(height, schnorrParams, pk))
	case "p1-contribute":
		return setup.CeremonyP1Contribute()
	case "p1-verify":
		if len(args) < 2 {
			return fmt.Errorf("usage: go run ./cmd/setup %d ceremony p1-verify BEACON_HEX", height)
		}
		pk, err := readIssuerKey()
		if err != nil {
			return err
		}
		return setup.CeremonyP1Verify(circuitForHeight(height, schnorrParams, pk), args[1])
	case "p2-init":
		pk, err := readIssuerKey()
		if err != nil {
			return err
		}
		return setup.CeremonyP2Init(circuitForHeight(height, schnorrParams, pk))
	case "p2-contribute":
		return setup.CeremonyP2Contribute()
	case "p2-verify":
		if len(args) < 2 {
			return fmt.Errorf("usage: go run ./cmd/setup %d ceremony p2-verify BEACON_HEX", height)
		}
		pk, err := readIssuerKey()
		if err != nil {
			return err
		}
		return setup.CeremonyP2Verify(circuitForHeight(height, schnorrParams, pk), args[1], ".", height)
	default:
		printUsage()
		os.Exit(1)
		return nil
	}
}

// circuitForHeight mirrors pkg/setup's unexported helper of the same name:
// the root circuit at height 0, a spend circuit of that Merkle-path depth
// otherwise, with the issuer public key and curve base point baked in.
func circuitForHeight(h int, p schnorr.Params, pk schnorr.PublicKey) frontend.Circuit {
	baseX := p.Curve.Base.X.BigInt(new(big.Int))
	baseY := p.Curve.Base.Y.BigInt(new(big.Int))
	pkX := pk.X.BigInt(new(big.Int))
	pkY := pk.Y.BigInt(new(big.Int))

	if h == 0 {
		return root.New(pkX, pkY, baseX, baseY)
	}
	return spend.NewCircuit(h, pkX, pkY, baseX, baseY)
}

// writeIssuerKey samples a fresh production issuer key and records its
// public coordinates to issuerKeyFile, for every ceremony participant (and
// the final server boot) to compile the same circuit against. The secret
// itself is printed once and never written to disk by this tool.
func writeIssuerKey(p schnorr.Params) error {
	sk, pk, err := schnorr.GenerateKey(p)
	if err != nil {
		return fmt.Errorf("generate issuer key: %w", err)
	}

	x, y := schnorr.EncodePublicKey(pk)
	out := issuerPubKey{X: x, Y: y}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(issuerKeyFile, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", issuerKeyFile, err)
	}

	fmt.Printf("Wrote issuer public key to %s.\n", issuerKeyFile)
	fmt.Printf("Issuer secret key (store offline, never commit): %s\n", sk.String())
	return nil
}

func readIssuerKey() (schnorr.PublicKey, error) {
	b, err := os.ReadFile(issuerKeyFile)
	if err != nil {
		return schnorr.PublicKey{}, fmt.Errorf("read %s (run 'ceremony init-key' first): %w", issuerKeyFile, err)
	}
	var parsed issuerPubKey
	if err := json.Unmarshal(b, &parsed); err != nil {
		return schnorr.PublicKey{}, fmt.Errorf("parse %s: %w", issuerKeyFile, err)
	}
	pk, err := schnorr.DecodePublicKey(parsed.X, parsed.Y)
	if err != nil {
		return pk, fmt.Errorf("parse %s: %w", issuerKeyFile, err)
	}
	return pk, nil
}

func printUsage() {
	fmt.Println(`Usage:
  go run ./cmd/setup <height> dev                          Single-party dev setup (NOT for production)

  go run ./cmd/setup <height> ceremony init-key            Coordinator: generate the production issuer key
  go run ./cmd/setup <height> ceremony p1-init             Initialize Phase 1 (Powers of Tau)
  go run ./cmd/setup <height> ceremony p1-contribute       Add a Phase 1 contribution
  go run ./cmd/setup <height> ceremony p1-verify HEX       Verify Phase 1 & seal with random beacon
  go run ./cmd/setup <height> ceremony p2-init             Initialize Phase 2 (circuit-specific)
  go run ./cmd/setup <height> ceremony p2-contribute       Add a Phase 2 contribution
  go run ./cmd/setup <height> ceremony p2-verify HEX       Verify Phase 2, seal & export keys

height is 0 (root circuit) or 1..12 (spend circuit of that Merkle-path depth);
the reference parameters need one ceremony run per height.`)
}
