package solana

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

type Pubkey [32]byte

var (
	ErrInvalidPubkey = errors.New("invalid pubkey")
)

// ParsePubkey accepts base58 or 32-byte hex (with or without 0x).
func ParsePubkey(s string) (Pubkey, error) {
	var out Pubkey
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return out, ErrInvalidPubkey
	}

	if len(s) == 64 {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != 32 {
			return out, ErrInvalidPubkey
		}
		copy(out[:], b)
		return out, nil
	}

	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return out, ErrInvalidPubkey
	}
	copy(out[:], b)
	return out, nil
}

func ParsePubkeys(in []string) ([]Pubkey, error) {
	out := make([]Pubkey, 0, len(in))
	for _, s := range in {
		pk, err := ParsePubkey(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

func (k Pubkey) Base58() string {
	return base58.Encode(k[:])
}

func (k Pubkey) String() string { return k.Base58() }

func (k Pubkey) IsZero() bool { return k == Pubkey{} }

// MarshalText renders the key as base58 so JSON, YAML and CBOR records
// stay readable.
func (k Pubkey) MarshalText() ([]byte, error) {
	return []byte(k.Base58()), nil
}

func (k *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*k = pk
	return nil
}
