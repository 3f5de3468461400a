package solana

import (
	"encoding/binary"
)

var (
	SystemProgramID = mustParsePubkey("11111111111111111111111111111111")
)

func mustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// Instruction tags of the native address lookup table program (bincode
// u32 enum discriminants).
const (
	altCreate uint32 = iota
	altFreeze
	altExtend
	altDeactivate
	altClose
)

func altData(tag uint32, extra int) []byte {
	out := make([]byte, 4, 4+extra)
	binary.LittleEndian.PutUint32(out, tag)
	return out
}

// CreateLookupTableInstruction creates the table derived from authority
// and recentSlot. It returns the derived table address alongside the
// instruction.
func CreateLookupTableInstruction(authority, payer Pubkey, recentSlot uint64) (Instruction, Pubkey, error) {
	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], recentSlot)
	table, bump, err := FindProgramAddress([][]byte{authority[:], slot[:]}, AddressLookupTableProgramID)
	if err != nil {
		return Instruction{}, Pubkey{}, err
	}

	data := altData(altCreate, 9)
	data = append(data, slot[:]...)
	data = append(data, bump)
	return Instruction{
		ProgramID: AddressLookupTableProgramID,
		Accounts: []AccountMeta{
			{Pubkey: table, IsWritable: true},
			{Pubkey: authority},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: data,
	}, table, nil
}

func FreezeLookupTableInstruction(table, authority Pubkey) Instruction {
	return Instruction{
		ProgramID: AddressLookupTableProgramID,
		Accounts: []AccountMeta{
			{Pubkey: table, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: altData(altFreeze, 0),
	}
}

// ExtendLookupTableInstruction appends addresses; payer funds the extra
// rent and may equal authority.
func ExtendLookupTableInstruction(table, authority, payer Pubkey, addresses []Pubkey) Instruction {
	data := altData(altExtend, 8+32*len(addresses))
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(addresses)))
	data = append(data, n[:]...)
	for _, pk := range addresses {
		data = append(data, pk[:]...)
	}
	return Instruction{
		ProgramID: AddressLookupTableProgramID,
		Accounts: []AccountMeta{
			{Pubkey: table, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: data,
	}
}

func DeactivateLookupTableInstruction(table, authority Pubkey) Instruction {
	return Instruction{
		ProgramID: AddressLookupTableProgramID,
		Accounts: []AccountMeta{
			{Pubkey: table, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: altData(altDeactivate, 0),
	}
}

func CloseLookupTableInstruction(table, authority, recipient Pubkey) Instruction {
	return Instruction{
		ProgramID: AddressLookupTableProgramID,
		Accounts: []AccountMeta{
			{Pubkey: table, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
			{Pubkey: recipient, IsWritable: true},
		},
		Data: altData(altClose, 0),
	}
}
