package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	maxSeeds     = 16
	maxSeedLen   = 32
	pdaMarker    = "ProgramDerivedAddress"
	firstBumpTry = uint8(255)
)

var (
	ErrInvalidSeeds     = errors.New("invalid seeds")
	ErrOnCurve          = errors.New("derived address is on-curve")
	ErrNoProgramAddress = errors.New("no viable program address found")
	ErrAddressMismatch  = errors.New("program address mismatch")
	ErrNonCanonicalBump = errors.New("bump is not canonical")
)

// FindProgramAddress returns the canonical program address for seeds: the
// first off-curve hash walking the bump seed down from 255.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	for bump := firstBumpTry; ; bump-- {
		pda, err := CreateProgramAddress(append(seeds[:len(seeds):len(seeds)], []byte{bump}), programID)
		if err == nil {
			return pda, bump, nil
		}
		if errors.Is(err, ErrInvalidSeeds) {
			return Pubkey{}, 0, err
		}
		if bump == 0 {
			return Pubkey{}, 0, ErrNoProgramAddress
		}
	}
}

func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > maxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > maxSeedLen {
			return Pubkey{}, fmt.Errorf("%w: seed %d is %d bytes", ErrInvalidSeeds, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if out.OnCurve() {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// VerifyProgramAddress checks that addr is the canonical program address
// for seeds. Only the canonical bump is accepted, so one set of seeds
// names exactly one account.
func VerifyProgramAddress(addr Pubkey, seeds [][]byte, bump uint8, programID Pubkey) error {
	want, canonical, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return err
	}
	if bump != canonical {
		return fmt.Errorf("%w: got %d, want %d", ErrNonCanonicalBump, bump, canonical)
	}
	if addr != want {
		return fmt.Errorf("%w: %s", ErrAddressMismatch, addr)
	}
	return nil
}

// OnCurve reports whether k decodes as an ed25519 point, i.e. whether a
// private key could exist for it.
func (k Pubkey) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(k[:])
	return err == nil
}
