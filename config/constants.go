// Package config holds the fixed reference parameters for the divisible
// token scheme: wallet height, field element sizing, and the Poseidon2
// parameters shared by every native and in-circuit hash in the system.
package config

const (
	// MaxWalletHeight is L, the maximum wallet height. A freshly issued
	// wallet holds 2^MaxWalletHeight leaves and can be spent down to the
	// unit denomination in at most MaxWalletHeight+1 coins.
	MaxWalletHeight = 12

	// TotalLeaves is 2^L, the number of GGM leaves / SMT leaves per wallet.
	TotalLeaves = 1 << MaxWalletHeight

	// SeedSize and KeySize are the byte width of GGM seeds, subkeys, and
	// leaves — all 32-byte BLAKE3 outputs.
	SeedSize = 32
	KeySize  = 32
)

// Poseidon2 parameters (width 2, 6 full rounds, 50 partial rounds) — the
// same parameterization the teacher corpus uses for every Poseidon2 sponge,
// native and in-circuit.
const (
	Poseidon2Width         = 2
	Poseidon2FullRounds    = 6
	Poseidon2PartialRounds = 50
)
