package solana

import (
	"errors"
	"fmt"
)

type ParsedInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// ParsedMessage is a decoded legacy or v0 message. Indices in
// Instructions refer to StaticKeys followed by the addresses the lookups
// load; resolving the lookups is the caller's job.
type ParsedMessage struct {
	Versioned       bool
	Header          MessageHeader
	StaticKeys      []Pubkey
	RecentBlockhash [32]byte
	Instructions    []ParsedInstruction
	Lookups         []MessageAddressTableLookup
}

// ParseTransaction strips the signature section and parses the message.
func ParseTransaction(tx []byte) (ParsedMessage, error) {
	if len(tx) == 0 {
		return ParsedMessage{}, errors.New("empty tx")
	}
	sigCount, off, err := decodeShortVecLenAt(tx, 0)
	if err != nil {
		return ParsedMessage{}, fmt.Errorf("decode signature count: %w", err)
	}
	if off+sigCount*64 > len(tx) {
		return ParsedMessage{}, errors.New("invalid signature section")
	}
	return ParseMessage(tx[off+sigCount*64:])
}

func ParseMessage(msg []byte) (ParsedMessage, error) {
	var out ParsedMessage
	if len(msg) == 0 {
		return out, errors.New("empty message")
	}

	off := 0
	if msg[0]&0x80 != 0 {
		if version := msg[0] & 0x7f; version != 0 {
			return out, fmt.Errorf("unsupported message version %d", version)
		}
		out.Versioned = true
		off++
	}

	if off+3 > len(msg) {
		return out, errors.New("message header truncated")
	}
	out.Header = MessageHeader{
		NumRequiredSignatures:       msg[off],
		NumReadonlySignedAccounts:   msg[off+1],
		NumReadonlyUnsignedAccounts: msg[off+2],
	}
	off += 3

	nKeys, off, err := decodeShortVecLenAt(msg, off)
	if err != nil {
		return out, fmt.Errorf("decode account keys count: %w", err)
	}
	if off+(nKeys*32) > len(msg) {
		return out, errors.New("account keys truncated")
	}
	out.StaticKeys = make([]Pubkey, 0, nKeys)
	for i := 0; i < nKeys; i++ {
		out.StaticKeys = append(out.StaticKeys, Pubkey(msg[off:off+32]))
		off += 32
	}

	if off+32 > len(msg) {
		return out, errors.New("recent blockhash truncated")
	}
	copy(out.RecentBlockhash[:], msg[off:off+32])
	off += 32

	nIxs, off, err := decodeShortVecLenAt(msg, off)
	if err != nil {
		return out, fmt.Errorf("decode instruction count: %w", err)
	}
	out.Instructions = make([]ParsedInstruction, 0, nIxs)
	for i := 0; i < nIxs; i++ {
		if off >= len(msg) {
			return out, errors.New("instruction truncated")
		}
		ix := ParsedInstruction{ProgramIDIndex: msg[off]}
		off++

		ix.Accounts, off, err = readBytes(msg, off)
		if err != nil {
			return out, fmt.Errorf("instruction %d accounts: %w", i, err)
		}
		ix.Data, off, err = readBytes(msg, off)
		if err != nil {
			return out, fmt.Errorf("instruction %d data: %w", i, err)
		}
		out.Instructions = append(out.Instructions, ix)
	}

	if !out.Versioned {
		return out, nil
	}

	nLookups, off, err := decodeShortVecLenAt(msg, off)
	if err != nil {
		return out, fmt.Errorf("decode lookup count: %w", err)
	}
	out.Lookups = make([]MessageAddressTableLookup, 0, nLookups)
	for i := 0; i < nLookups; i++ {
		if off+32 > len(msg) {
			return out, errors.New("lookup table key truncated")
		}
		l := MessageAddressTableLookup{AccountKey: Pubkey(msg[off : off+32])}
		off += 32
		l.WritableIndexes, off, err = readBytes(msg, off)
		if err != nil {
			return out, fmt.Errorf("lookup %d writable indexes: %w", i, err)
		}
		l.ReadonlyIndexes, off, err = readBytes(msg, off)
		if err != nil {
			return out, fmt.Errorf("lookup %d readonly indexes: %w", i, err)
		}
		out.Lookups = append(out.Lookups, l)
	}
	if off != len(msg) {
		return out, fmt.Errorf("%d trailing bytes after message", len(msg)-off)
	}
	return out, nil
}

func readBytes(b []byte, off int) ([]byte, int, error) {
	n, off, err := decodeShortVecLenAt(b, off)
	if err != nil {
		return nil, off, err
	}
	if off+n > len(b) {
		return nil, off, errors.New("truncated")
	}
	return append([]byte{}, b[off:off+n]...), off + n, nil
}
