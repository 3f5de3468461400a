package solana

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrInvalidAddressLookupTable = errors.New("invalid address lookup table")

var AddressLookupTableProgramID = mustParsePubkey("AddressLookupTab1e1111111111111111111111111")

const (
	addressLookupTableDiscriminator = 1
	addressLookupTableMetaSize      = 56
	addressLookupTableMaxAddresses  = 256
)

// AddressLookupTableState is the decoded account of the native address
// lookup table program.
type AddressLookupTableState struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	// Authority is nil once the table is frozen.
	Authority *Pubkey
	Addresses []Pubkey
}

// AddressLookupTableDataLen is the account size of a table holding n
// addresses.
func AddressLookupTableDataLen(n int) int {
	return addressLookupTableMetaSize + 32*n
}

func (s AddressLookupTableState) IsActive() bool {
	return s.DeactivationSlot == math.MaxUint64
}

// DecodeAddressLookupTable parses an Address Lookup Table account's raw data.
//
// Format:
//
//	u32  discriminator (1)
//	u64  deactivation_slot
//	u64  last_extended_slot
//	u8   last_extended_slot_start_index
//	u8   has_authority (0|1)
//	[32] authority pubkey (present even when has_authority=0; all-zero pubkey means none)
//	[2]  padding (0)
//	[32]* addresses (rest of the account data)
//
// This matches the on-chain layout used by the address lookup table program.
func DecodeAddressLookupTable(data []byte) (AddressLookupTableState, error) {
	var out AddressLookupTableState
	if len(data) < addressLookupTableMetaSize {
		return out, ErrInvalidAddressLookupTable
	}
	if binary.LittleEndian.Uint32(data[0:4]) != addressLookupTableDiscriminator {
		return out, ErrInvalidAddressLookupTable
	}
	if (len(data)-addressLookupTableMetaSize)%32 != 0 {
		return out, ErrInvalidAddressLookupTable
	}
	n := (len(data) - addressLookupTableMetaSize) / 32
	if n > addressLookupTableMaxAddresses {
		return out, ErrInvalidAddressLookupTable
	}

	out.DeactivationSlot = binary.LittleEndian.Uint64(data[4:12])
	out.LastExtendedSlot = binary.LittleEndian.Uint64(data[12:20])
	out.LastExtendedSlotStartIndex = data[20]
	switch data[21] {
	case 0:
	case 1:
		var auth Pubkey
		copy(auth[:], data[22:54])
		out.Authority = &auth
	default:
		return out, ErrInvalidAddressLookupTable
	}

	out.Addresses = make([]Pubkey, 0, n)
	off := addressLookupTableMetaSize
	for i := 0; i < n; i++ {
		var pk Pubkey
		copy(pk[:], data[off:off+32])
		out.Addresses = append(out.Addresses, pk)
		off += 32
	}
	return out, nil
}

// EncodeAddressLookupTable is the inverse of DecodeAddressLookupTable.
func EncodeAddressLookupTable(s AddressLookupTableState) ([]byte, error) {
	if len(s.Addresses) > addressLookupTableMaxAddresses {
		return nil, ErrInvalidAddressLookupTable
	}
	out := make([]byte, addressLookupTableMetaSize, addressLookupTableMetaSize+32*len(s.Addresses))
	binary.LittleEndian.PutUint32(out[0:4], addressLookupTableDiscriminator)
	binary.LittleEndian.PutUint64(out[4:12], s.DeactivationSlot)
	binary.LittleEndian.PutUint64(out[12:20], s.LastExtendedSlot)
	out[20] = s.LastExtendedSlotStartIndex
	if s.Authority != nil {
		out[21] = 1
		copy(out[22:54], s.Authority[:])
	}
	for _, pk := range s.Addresses {
		out = append(out, pk[:]...)
	}
	return out, nil
}
