// Package setup compiles the root and spend circuits and runs Groth16 key
// generation for every supported wallet height, plus the MPC ceremony
// machinery (Phase 1 powers-of-tau, Phase 2 circuit-specific) for
// production-grade key generation. The circuit-agnostic helpers below
// descend directly from the file-storage proof-of-inclusion system's own
// setup package; only the per-height orchestration in BuildPublicParams is
// new.
package setup

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"math/big"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/groth16/bn254/mpcsetup"
	"github.com/consensys/gnark/constraint"
	cs_bn254 "github.com/consensys/gnark/constraint/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/auctionmesh/divtoken/circuits/root"
	"github.com/auctionmesh/divtoken/circuits/spend"
	"github.com/auctionmesh/divtoken/pkg/pp"
	"github.com/auctionmesh/divtoken/pkg/schnorr"
)

// CompileCircuit compiles a gnark circuit into an R1CS constraint system.
func CompileCircuit(circuit frontend.Circuit) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	return ccs, nil
}

// circuitForHeight builds the Go circuit struct for height h: root.New for
// h == 0, spend.NewCircuit(h) for h in [1, maxHeight].
func circuitForHeight(h int, pkX, pkY, baseX, baseY *big.Int) frontend.Circuit {
	if h == 0 {
		return root.New(pkX, pkY, baseX, baseY)
	}
	return spend.NewCircuit(h, pkX, pkY, baseX, baseY)
}

// BuildPublicParams runs a single-party (development) Groth16 setup for
// every height 0..maxHeight and assembles the resulting PublicParams. NOT
// for production — see the MPC ceremony functions below for a real
// multi-party trusted setup.
func BuildPublicParams(maxHeight int, issuerSK *big.Int) (*pp.PublicParams, error) {
	schnorrParams := schnorr.NewParams()
	var issuerPK schnorr.PublicKey
	issuerPK.ScalarMultiplication(&schnorrParams.Curve.Base, issuerSK)

	baseX := schnorrParams.Curve.Base.X.BigInt(new(big.Int))
	baseY := schnorrParams.Curve.Base.Y.BigInt(new(big.Int))
	pkX := issuerPK.X.BigInt(new(big.Int))
	pkY := issuerPK.Y.BigInt(new(big.Int))

	params := &pp.PublicParams{
		Schnorr:       schnorrParams,
		IssuerPK:      issuerPK,
		MaxHeight:     maxHeight,
		CCS:           make(map[int]constraint.ConstraintSystem, maxHeight+1),
		ProvingKeys:   make(map[int]groth16.ProvingKey, maxHeight+1),
		VerifyingKeys: make(map[int]groth16.VerifyingKey, maxHeight+1),
	}

	for h := 0; h <= maxHeight; h++ {
		ccs, err := CompileCircuit(circuitForHeight(h, pkX, pkY, baseX, baseY))
		if err != nil {
			return nil, fmt.Errorf("compile height %d circuit: %w", h, err)
		}
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			return nil, fmt.Errorf("groth16 setup for height %d: %w", h, err)
		}
		params.CCS[h] = ccs
		params.ProvingKeys[h] = pk
		params.VerifyingKeys[h] = vk
	}

	return params, nil
}

// LoadPublicParams recompiles every height's circuit against a fixed issuer
// public key and loads its proving/verifying keys from dir. This is the
// counterpart to BuildPublicParams for a party that doesn't hold the issuer
// secret: a client loads the same ceremony-produced (or dev-exported) keys
// published under the issuer key it was told to trust, and ends up with
// exactly the CCS the issuer itself compiled.
func LoadPublicParams(dir string, maxHeight int, issuerPK schnorr.PublicKey) (*pp.PublicParams, error) {
	schnorrParams := schnorr.NewParams()
	baseX := schnorrParams.Curve.Base.X.BigInt(new(big.Int))
	baseY := schnorrParams.Curve.Base.Y.BigInt(new(big.Int))
	pkX := issuerPK.X.BigInt(new(big.Int))
	pkY := issuerPK.Y.BigInt(new(big.Int))

	params := &pp.PublicParams{
		Schnorr:       schnorrParams,
		IssuerPK:      issuerPK,
		MaxHeight:     maxHeight,
		CCS:           make(map[int]constraint.ConstraintSystem, maxHeight+1),
		ProvingKeys:   make(map[int]groth16.ProvingKey, maxHeight+1),
		VerifyingKeys: make(map[int]groth16.VerifyingKey, maxHeight+1),
	}

	for h := 0; h <= maxHeight; h++ {
		ccs, err := CompileCircuit(circuitForHeight(h, pkX, pkY, baseX, baseY))
		if err != nil {
			return nil, fmt.Errorf("compile height %d circuit: %w", h, err)
		}
		pk, vk, err := LoadKeys(dir, h)
		if err != nil {
			return nil, fmt.Errorf("load height %d keys: %w", h, err)
		}
		params.CCS[h] = ccs
		params.ProvingKeys[h] = pk
		params.VerifyingKeys[h] = vk
	}

	return params, nil
}

// ExportAll writes every height's proving/verifying key (and Solidity
// verifier) to dir, the counterpart a party that ran BuildPublicParams uses
// to publish its artifacts for LoadPublicParams callers.
func ExportAll(params *pp.PublicParams, dir string) error {
	for h := 0; h <= params.MaxHeight; h++ {
		if err := ExportKeys(params.ProvingKeys[h], params.VerifyingKeys[h], dir, circuitName(h)); err != nil {
			return fmt.Errorf("export height %d: %w", h, err)
		}
	}
	return nil
}

// circuitName returns the on-disk/ceremony circuit identifier for height h:
// "root" for h == 0, "spend_h" otherwise.
func circuitName(h int) string {
	if h == 0 {
		return "root"
	}
	return fmt.Sprintf("spend_%d", h)
}

// DevSetup performs a single-party trusted setup (NOT for production) for
// one height's circuit and writes pk_h/vk_h/Solidity verifier to outputDir.
func DevSetup(circuit frontend.Circuit, outputDir string, height int) error {
	name := circuitName(height)
	fmt.Println("================================================================")
	fmt.Println("  WARNING: Single-party setup (1-of-1 trust assumption)")
	fmt.Println("  DO NOT use these keys in production.")
	fmt.Printf("  For production, run: go run ./cmd/setup %d ceremony --help\n", height)
	fmt.Println("================================================================")

	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}

	return ExportKeys(pk, vk, outputDir, name)
}

// ExportKeys writes the proving key, verifying key, and Solidity verifier
// to outputDir. Files are named <circuitName>_prover.key,
// <circuitName>_verifier.key, <circuitName>_verifier.sol.
func ExportKeys(pk groth16.ProvingKey, vk groth16.VerifyingKey, outputDir, circuitName string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	solPath := filepath.Join(outputDir, circuitName+"_verifier.sol")
	f, err := os.Create(solPath)
	if err != nil {
		return fmt.Errorf("create solidity verifier: %w", err)
	}
	if err := vk.ExportSolidity(f); err != nil {
		f.Close()
		return fmt.Errorf("export solidity verifier: %w", err)
	}
	f.Close()

	vkPath := filepath.Join(outputDir, circuitName+"_verifier.key")
	if err := saveObject(vkPath, vk); err != nil {
		return err
	}

	pkPath := filepath.Join(outputDir, circuitName+"_prover.key")
	if err := saveObject(pkPath, pk); err != nil {
		return err
	}

	fmt.Printf("Exported: %s, %s, %s\n", pkPath, vkPath, solPath)
	return nil
}

// LoadKeys loads the proving and verifying keys for one height from dir.
func LoadKeys(dir string, height int) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	name := circuitName(height)

	pk := groth16.NewProvingKey(ecc.BN254)
	pkPath := filepath.Join(dir, name+"_prover.key")
	f, err := os.Open(pkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open proving key: %w", err)
	}
	if _, err := pk.ReadFrom(f); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read proving key: %w", err)
	}
	f.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	vkPath := filepath.Join(dir, name+"_verifier.key")
	f, err = os.Open(vkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open verifying key: %w", err)
	}
	if _, err := vk.ReadFrom(f); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read verifying key: %w", err)
	}
	f.Close()

	return pk, vk, nil
}

// ─── MPC Ceremony ───────────────────────────────────────────────────────────

// CeremonyDir is the default directory for ceremony files.
const CeremonyDir = "ceremony"

// CeremonyP1Init initializes Phase 1 (Powers of Tau). Phase 1 is circuit-
// independent in size only up to the next power of two of constraint
// count, so in practice one Phase 1 run can seed several heights provided
// their constraint counts share a domain size.
func CeremonyP1Init(circuit frontend.Circuit) error {
	ensureCeremonyDir()
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}

	N := ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))
	fmt.Printf("Phase 1: domain size N = %d (2^%d), %d constraints\n", N, bits.Len64(N)-1, ccs.GetNbConstraints())

	p := mpcsetup.NewPhase1(N)
	path := nextContribPath("phase1")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote initial Phase 1 state to %s\n", path)
	return nil
}

// CeremonyP1Contribute adds a Phase 1 contribution.
func CeremonyP1Contribute() error {
	latest := latestContrib("phase1")
	fmt.Printf("Loading %s\n", latest)

	var p mpcsetup.Phase1
	if err := loadObject(latest, &p); err != nil {
		return err
	}

	fmt.Println("Contributing randomness to Phase 1...")
	p.Contribute()

	path := nextContribPath("phase1")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote Phase 1 contribution to %s\n", path)
	return nil
}

// CeremonyP1Verify verifies Phase 1 contributions and seals with a random beacon.
func CeremonyP1Verify(circuit frontend.Circuit, beaconHex string) error {
	beacon, err := parseBeacon(beaconHex)
	if err != nil {
		return err
	}
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}
	N := ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))

	contribs := findContribs("phase1")
	if len(contribs) < 2 {
		return fmt.Errorf("need at least the init file + one contribution to verify")
	}

	nContribs := len(contribs) - 1
	fmt.Printf("Verifying %d Phase 1 contribution(s)...\n", nContribs)

	phases := make([]*mpcsetup.Phase1, nContribs)
	for i, path := range contribs[1:] {
		phases[i] = new(mpcsetup.Phase1)
		if err := loadObject(path, phases[i]); err != nil {
			return err
		}
	}

	commons, err := mpcsetup.VerifyPhase1(N, beacon, phases...)
	if err != nil {
		return fmt.Errorf("Phase 1 verification FAILED: %w", err)
	}

	srsPath := filepath.Join(CeremonyDir, "srs_commons.bin")
	if err := saveObject(srsPath, &commons); err != nil {
		return err
	}
	fmt.Printf("Phase 1 verified and sealed. SRS commons written to %s\n", srsPath)
	return nil
}

// CeremonyP2Init initializes Phase 2 (circuit-specific) for one height.
func CeremonyP2Init(circuit frontend.Circuit) error {
	ensureCeremonyDir()
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}
	r1csConcrete := ccs.(*cs_bn254.R1CS)

	srsPath := filepath.Join(CeremonyDir, "srs_commons.bin")
	var commons mpcsetup.SrsCommons
	if err := loadObject(srsPath, &commons); err != nil {
		return err
	}

	fmt.Println("Initializing Phase 2 with circuit and SRS commons...")
	var p mpcsetup.Phase2
	p.Initialize(r1csConcrete, &commons)

	path := nextContribPath("phase2")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote initial Phase 2 state to %s\n", path)
	return nil
}

// CeremonyP2Contribute adds a Phase 2 contribution.
func CeremonyP2Contribute() error {
	latest := latestContrib("phase2")
	fmt.Printf("Loading %s\n", latest)

	var p mpcsetup.Phase2
	if err := loadObject(latest, &p); err != nil {
		return err
	}

	fmt.Println("Contributing randomness to Phase 2...")
	p.Contribute()

	path := nextContribPath("phase2")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote Phase 2 contribution to %s\n", path)
	return nil
}

// CeremonyP2Verify verifies Phase 2 contributions, seals, and exports final keys.
func CeremonyP2Verify(circuit frontend.Circuit, beaconHex, outputDir string, height int) error {
	beacon, err := parseBeacon(beaconHex)
	if err != nil {
		return err
	}
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}
	r1csConcrete := ccs.(*cs_bn254.R1CS)

	srsPath := filepath.Join(CeremonyDir, "srs_commons.bin")
	var commons mpcsetup.SrsCommons
	if err := loadObject(srsPath, &commons); err != nil {
		return err
	}

	contribs := findContribs("phase2")
	if len(contribs) < 2 {
		return fmt.Errorf("need at least the init file + one contribution to verify")
	}

	nContribs := len(contribs) - 1
	fmt.Printf("Verifying %d Phase 2 contribution(s)...\n", nContribs)

	phases := make([]*mpcsetup.Phase2, nContribs)
	for i, path := range contribs[1:] {
		phases[i] = new(mpcsetup.Phase2)
		if err := loadObject(path, phases[i]); err != nil {
			return err
		}
	}

	pk, vk, err := mpcsetup.VerifyPhase2(r1csConcrete, &commons, beacon, phases...)
	if err != nil {
		return fmt.Errorf("Phase 2 verification FAILED: %w", err)
	}

	if err := ExportKeys(pk, vk, outputDir, circuitName(height)); err != nil {
		return err
	}
	fmt.Println("Ceremony complete. Keys are production-ready.")
	return nil
}

// ─── Internal helpers ───────────────────────────────────────────────────────

func ensureCeremonyDir() {
	if err := os.MkdirAll(CeremonyDir, 0o755); err != nil {
		log.Fatal(err)
	}
}

func saveObject(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = obj.WriteTo(f)
	return err
}

func loadObject(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = obj.ReadFrom(f)
	return err
}

func parseBeacon(hexStr string) ([]byte, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("invalid beacon hex: %w", err)
	}
	if len(b) < 16 {
		return nil, fmt.Errorf("beacon must be at least 16 bytes for sufficient entropy")
	}
	return b, nil
}

// findContribs returns sorted paths matching ceremony/<prefix>_NNNN.bin
func findContribs(prefix string) []string {
	pattern := filepath.Join(CeremonyDir, prefix+"_????.bin")
	matches, _ := filepath.Glob(pattern)
	sort.Strings(matches)
	return matches
}

func latestContrib(prefix string) string {
	contribs := findContribs(prefix)
	if len(contribs) == 0 {
		log.Fatalf("no %s contributions found in %s/", prefix, CeremonyDir)
	}
	return contribs[len(contribs)-1]
}

func nextContribPath(prefix string) string {
	return filepath.Join(CeremonyDir, fmt.Sprintf("%s_%04d.bin", prefix, len(findContribs(prefix))))
}
