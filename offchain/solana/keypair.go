package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrInvalidKeypairFile = errors.New("invalid keypair file")

// DefaultKeypairPath is where the Solana CLI keeps its default signer.
func DefaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// LoadKeypair reads a Solana CLI keypair file: a JSON array of the 64
// private key bytes.
func LoadKeypair(path string) (ed25519.PrivateKey, Pubkey, error) {
	if path == "" {
		return nil, Pubkey{}, fmt.Errorf("keypair path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Pubkey{}, err
	}

	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, Pubkey{}, fmt.Errorf("%w: %v", ErrInvalidKeypairFile, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, Pubkey{}, fmt.Errorf("%w: %d bytes", ErrInvalidKeypairFile, len(ints))
	}
	key := make([]byte, ed25519.PrivateKeySize)
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, Pubkey{}, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypairFile, i)
		}
		key[i] = byte(v)
	}

	priv := ed25519.PrivateKey(key)
	// The public half is stored in the file; it must match the seed.
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return nil, Pubkey{}, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypairFile)
	}
	var pub Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return priv, pub, nil
}

// WriteKeypair stores priv in the Solana CLI keypair format with owner-only
// permissions.
func WriteKeypair(path string, priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidKeypairFile, len(priv))
	}
	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
