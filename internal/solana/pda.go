package solana

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

var (
	SystemProgramID          = PublicKey{}
	TokenProgramID           = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// ErrNoViableBump is returned when every bump seed lands on the curve.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

const pdaMarker = "ProgramDerivedAddress"

// CreateProgramAddress hashes seeds with the program id. The result must be off
// the ed25519 curve, so that no private key can sign for it.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, bool) {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if isOnCurve(pk[:]) {
		return PublicKey{}, false
	}
	return pk, true
}

// FindProgramAddress searches bump seeds from 255 downward and returns the
// first off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		if pk, ok := CreateProgramAddress(withBump, programID); ok {
			return pk, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// FindAssociatedTokenAddress derives the canonical token account of owner for
// mint. Seeds: [owner, token program, mint].
func FindAssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	pk, _, err := FindProgramAddress(
		[][]byte{owner[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	return pk, err
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
