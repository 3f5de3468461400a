package solana

import (
	"crypto/ed25519"
	"errors"
	"sort"
)

var ErrMissingSigner = errors.New("missing signer for required signature")

type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

func BuildAndSignLegacyTransaction(
	recentBlockhash [32]byte,
	feePayer Pubkey,
	signers map[Pubkey]ed25519.PrivateKey,
	instructions []Instruction,
) ([]byte, error) {
	msg, accountKeys, header, err := CompileLegacyMessage(recentBlockhash, feePayer, instructions)
	if err != nil {
		return nil, err
	}
	return signMessage(msg, accountKeys, header, signers)
}

func signMessage(msg []byte, accountKeys []Pubkey, header MessageHeader, signers map[Pubkey]ed25519.PrivateKey) ([]byte, error) {
	sigCount := int(header.NumRequiredSignatures)
	sigs := make([]byte, 0, sigCount*64)
	for i := 0; i < sigCount; i++ {
		priv, ok := signers[accountKeys[i]]
		if !ok {
			return nil, ErrMissingSigner
		}
		sigs = append(sigs, ed25519.Sign(priv, msg)...)
	}

	out := make([]byte, 0, len(msg)+1+len(sigs))
	out = append(out, encodeShortVecLen(sigCount)...)
	out = append(out, sigs...)
	out = append(out, msg...)
	return out, nil
}

type accountInfo struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
	FirstSeen  int
}

// accountSet collects the accounts an instruction list touches, merging
// signer and writable flags and remembering first-use order.
type accountSet map[Pubkey]*accountInfo

func collectAccounts(feePayer Pubkey, instructions []Instruction) accountSet {
	infos := make(accountSet, 32)
	// Fee payer must be a writable signer.
	infos.touch(feePayer, true, true)
	for _, ix := range instructions {
		infos.touch(ix.ProgramID, false, false)
		for _, am := range ix.Accounts {
			infos.touch(am.Pubkey, am.IsSigner, am.IsWritable)
		}
	}
	return infos
}

func (s accountSet) touch(pk Pubkey, signer, writable bool) {
	if ai, ok := s[pk]; ok {
		ai.IsSigner = ai.IsSigner || signer
		ai.IsWritable = ai.IsWritable || writable
		return
	}
	s[pk] = &accountInfo{
		Pubkey:     pk,
		IsSigner:   signer,
		IsWritable: writable,
		FirstSeen:  len(s),
	}
}

// orderedKeys lays out the static key list: writable signers, readonly
// signers, writable non-signers, readonly non-signers, each in first-use
// order. Keys in skip are left out.
func (s accountSet) orderedKeys(skip map[Pubkey]lookupRef) ([]Pubkey, MessageHeader) {
	var groups [4][]*accountInfo
	for _, ai := range s {
		if _, ok := skip[ai.Pubkey]; ok {
			continue
		}
		g := 3
		switch {
		case ai.IsSigner && ai.IsWritable:
			g = 0
		case ai.IsSigner:
			g = 1
		case ai.IsWritable:
			g = 2
		}
		groups[g] = append(groups[g], ai)
	}

	keys := make([]Pubkey, 0, len(s))
	for _, g := range groups {
		sortByFirstSeen(g)
		for _, ai := range g {
			keys = append(keys, ai.Pubkey)
		}
	}
	return keys, MessageHeader{
		NumRequiredSignatures:       uint8(len(groups[0]) + len(groups[1])),
		NumReadonlySignedAccounts:   uint8(len(groups[1])),
		NumReadonlyUnsignedAccounts: uint8(len(groups[3])),
	}
}

// CompileLegacyMessage serializes a legacy message and returns it with
// its static account keys and header.
func CompileLegacyMessage(
	recentBlockhash [32]byte,
	feePayer Pubkey,
	instructions []Instruction,
) ([]byte, []Pubkey, MessageHeader, error) {
	accountKeys, h := collectAccounts(feePayer, instructions).orderedKeys(nil)
	if len(accountKeys) > 256 {
		return nil, nil, MessageHeader{}, errors.New("too many account keys")
	}

	indexOf := make(map[Pubkey]uint8, len(accountKeys))
	for i, pk := range accountKeys {
		indexOf[pk] = uint8(i)
	}

	out := make([]byte, 0, 512)
	out = append(out, h.NumRequiredSignatures, h.NumReadonlySignedAccounts, h.NumReadonlyUnsignedAccounts)
	out = append(out, encodeShortVecLen(len(accountKeys))...)
	for _, pk := range accountKeys {
		out = append(out, pk[:]...)
	}
	out = append(out, recentBlockhash[:]...)

	out, err := appendInstructions(out, instructions, indexOf)
	if err != nil {
		return nil, nil, MessageHeader{}, err
	}
	return out, accountKeys, h, nil
}

func sortByFirstSeen(infos []*accountInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].FirstSeen < infos[j].FirstSeen })
}
