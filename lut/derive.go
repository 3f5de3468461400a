package lut

import (
	"encoding/binary"
	"fmt"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

// UserTableSeed prefixes the per-user pointer account that records which
// table a signer owns.
const UserTableSeed = "UserAddressLookupTable"

func seedBytes(seed uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	return b[:]
}

// DeriveTableAddress returns the canonical table address for an authority
// and a recent slot: PDA([authority, seed as u64 LE], programID).
func DeriveTableAddress(programID, authority solana.Pubkey, seed uint64) (solana.Pubkey, uint8, error) {
	return solana.FindProgramAddress([][]byte{authority[:], seedBytes(seed)}, programID)
}

func DeriveUserTablePointer(programID, user solana.Pubkey) (solana.Pubkey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(UserTableSeed), user[:]}, programID)
}

// verifyDerivation re-derives t.Address from its recorded authority and
// seed, so a record copied under another key or carrying a non-canonical
// bump is rejected.
func verifyDerivation(programID solana.Pubkey, t *Table) error {
	seeds := [][]byte{t.Authority[:], seedBytes(t.Seed)}
	if err := solana.VerifyProgramAddress(t.Address, seeds, t.Bump, programID); err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	return nil
}
