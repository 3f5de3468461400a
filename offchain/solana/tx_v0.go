package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
)

// LookupTable is the part of a table a message may reference. Callers
// pass only addresses that are usable at the current slot; positions must
// match the on-chain indices.
type LookupTable struct {
	AccountKey Pubkey
	Addresses  []Pubkey
}

// MessageAddressTableLookup is one table reference inside a v0 message.
type MessageAddressTableLookup struct {
	AccountKey      Pubkey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

func BuildAndSignV0Transaction(
	recentBlockhash [32]byte,
	feePayer Pubkey,
	signers map[Pubkey]ed25519.PrivateKey,
	instructions []Instruction,
	lookupTables []LookupTable,
) ([]byte, error) {
	msg, accountKeys, header, err := CompileV0Message(recentBlockhash, feePayer, instructions, lookupTables)
	if err != nil {
		return nil, err
	}
	return signMessage(msg, accountKeys, header, signers)
}

type lookupRef struct {
	Table int
	Index uint8
}

// CompileV0Message serializes a v0 message, loading every non-signer,
// non-program account found in lookupTables through its table index.
func CompileV0Message(
	recentBlockhash [32]byte,
	feePayer Pubkey,
	instructions []Instruction,
	lookupTables []LookupTable,
) ([]byte, []Pubkey, MessageHeader, error) {
	infos := collectAccounts(feePayer, instructions)

	programIDs := make(map[Pubkey]struct{}, len(instructions))
	for _, ix := range instructions {
		programIDs[ix.ProgramID] = struct{}{}
	}

	lookupAccountKeys := make(map[Pubkey]struct{}, len(lookupTables))
	for _, lt := range lookupTables {
		lookupAccountKeys[lt.AccountKey] = struct{}{}
		// Lookup table account keys must be present in the static key list.
		infos.touch(lt.AccountKey, false, false)
	}

	tableIndex := make(map[Pubkey]lookupRef, 256)
	for ti, lt := range lookupTables {
		if len(lt.Addresses) > 256 {
			return nil, nil, MessageHeader{}, fmt.Errorf("lookup table %s has too many addresses: %d", lt.AccountKey.Base58(), len(lt.Addresses))
		}
		for i, pk := range lt.Addresses {
			if _, ok := tableIndex[pk]; ok {
				continue
			}
			tableIndex[pk] = lookupRef{Table: ti, Index: uint8(i)}
		}
	}

	// Select loadable (non-signer) keys that are present in a lookup table.
	selected := make(map[Pubkey]lookupRef, 64)
	for pk, ai := range infos {
		if ai.IsSigner {
			continue
		}
		if _, ok := programIDs[pk]; ok {
			continue
		}
		if _, ok := lookupAccountKeys[pk]; ok {
			continue
		}
		if ref, ok := tableIndex[pk]; ok {
			selected[pk] = ref
		}
	}

	staticKeys, h := infos.orderedKeys(selected)

	indexOf := make(map[Pubkey]uint8, len(staticKeys)+len(selected))
	for i, pk := range staticKeys {
		if i > 0xff {
			return nil, nil, MessageHeader{}, errors.New("too many static account keys")
		}
		indexOf[pk] = uint8(i)
	}

	selections := make([]MessageAddressTableLookup, len(lookupTables))
	for i, lt := range lookupTables {
		selections[i].AccountKey = lt.AccountKey
	}
	for pk, ref := range selected {
		sel := &selections[ref.Table]
		if infos[pk].IsWritable {
			sel.WritableIndexes = append(sel.WritableIndexes, ref.Index)
		} else {
			sel.ReadonlyIndexes = append(sel.ReadonlyIndexes, ref.Index)
		}
	}

	// Loaded keys follow the static keys: all writable loads, then all
	// readonly loads, table by table.
	lookups := make([]MessageAddressTableLookup, 0, len(selections))
	var writableLoads, readonlyLoads []Pubkey
	for ti, sel := range selections {
		sel.WritableIndexes = sortUniqueUint8(sel.WritableIndexes)
		sel.ReadonlyIndexes = sortUniqueUint8(sel.ReadonlyIndexes)
		if len(sel.WritableIndexes) == 0 && len(sel.ReadonlyIndexes) == 0 {
			continue
		}
		lookups = append(lookups, sel)
		for _, ix := range sel.WritableIndexes {
			writableLoads = append(writableLoads, lookupTables[ti].Addresses[ix])
		}
		for _, ix := range sel.ReadonlyIndexes {
			readonlyLoads = append(readonlyLoads, lookupTables[ti].Addresses[ix])
		}
	}

	for i, pk := range append(writableLoads, readonlyLoads...) {
		j := len(staticKeys) + i
		if j > 0xff {
			return nil, nil, MessageHeader{}, errors.New("too many account keys (static+lookup)")
		}
		indexOf[pk] = uint8(j)
	}

	// v0 message prefix: 0x80 | version (0).
	out := make([]byte, 0, 512)
	out = append(out, 0x80)
	out = append(out, h.NumRequiredSignatures, h.NumReadonlySignedAccounts, h.NumReadonlyUnsignedAccounts)
	out = append(out, encodeShortVecLen(len(staticKeys))...)
	for _, pk := range staticKeys {
		out = append(out, pk[:]...)
	}
	out = append(out, recentBlockhash[:]...)

	out, err := appendInstructions(out, instructions, indexOf)
	if err != nil {
		return nil, nil, MessageHeader{}, err
	}

	out = append(out, encodeShortVecLen(len(lookups))...)
	for _, sel := range lookups {
		out = append(out, sel.AccountKey[:]...)
		out = append(out, encodeShortVecLen(len(sel.WritableIndexes))...)
		out = append(out, sel.WritableIndexes...)
		out = append(out, encodeShortVecLen(len(sel.ReadonlyIndexes))...)
		out = append(out, sel.ReadonlyIndexes...)
	}

	return out, staticKeys, h, nil
}

func appendInstructions(out []byte, instructions []Instruction, indexOf map[Pubkey]uint8) ([]byte, error) {
	out = append(out, encodeShortVecLen(len(instructions))...)
	for _, ix := range instructions {
		pid, ok := indexOf[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program id missing from account list: %s", ix.ProgramID.Base58())
		}
		out = append(out, pid)
		out = append(out, encodeShortVecLen(len(ix.Accounts))...)
		for _, am := range ix.Accounts {
			ai, ok := indexOf[am.Pubkey]
			if !ok {
				return nil, fmt.Errorf("account missing from account list: %s", am.Pubkey.Base58())
			}
			out = append(out, ai)
		}
		out = append(out, encodeShortVecLen(len(ix.Data))...)
		out = append(out, ix.Data...)
	}
	return out, nil
}

func sortUniqueUint8(in []uint8) []uint8 {
	if len(in) == 0 {
		return nil
	}
	out := append([]uint8{}, in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i := 0; i < len(out); i++ {
		if i > 0 && out[i] == out[i-1] {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
