package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an account address in bytes.
const PubkeyLength = 32

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// Pubkey is a 32-byte Solana account address.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode base58 pubkey %q: %w", s, err)
	}
	if len(decoded) != PubkeyLength {
		return pk, fmt.Errorf("pubkey %q has %d bytes, want %d", s, len(decoded), PubkeyLength)
	}
	copy(pk[:], decoded)
	return pk, nil
}

// MustParsePubkey is ParsePubkey for package-level constants.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 encoding.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether every byte is zero.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// MarshalText implements encoding.TextMarshaler so JSON output uses base58.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 point.
// Program derived addresses are always off the curve.
func IsOnCurve(p Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// CreateProgramAddress hashes seeds with the program id:
// sha256(seeds... || programID || "ProgramDerivedAddress").
// The result is rejected if it lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return Pubkey{}, fmt.Errorf("seed length %d exceeds 32 bytes", len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))

	var pk Pubkey
	copy(pk[:], h.Sum(nil))
	if IsOnCurve(pk) {
		return Pubkey{}, errors.New("derived address is on the ed25519 curve")
	}
	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 down for the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}
