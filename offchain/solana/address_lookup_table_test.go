package solana

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeAddressLookupTable_RawLayout(t *testing.T) {
	var a Pubkey
	for i := range a {
		a[i] = 0x11
	}
	var b Pubkey
	for i := range b {
		b[i] = 0x22
	}

	data := make([]byte, 0, 56+64)
	var discr [4]byte
	binary.LittleEndian.PutUint32(discr[:], 1)
	data = append(data, discr[:]...)

	// deactivation_slot + last_extended_slot
	data = append(data, make([]byte, 8+8)...)
	// last_extended_slot_start_index + has_authority
	data = append(data, 0, 0)
	// authority pubkey (all zero for none)
	data = append(data, make([]byte, 32)...)
	// padding
	data = append(data, 0, 0)
	// addresses
	data = append(data, a[:]...)
	data = append(data, b[:]...)

	st, err := DecodeAddressLookupTable(data)
	if err != nil {
		t.Fatalf("DecodeAddressLookupTable: %v", err)
	}
	if st.Authority != nil {
		t.Fatalf("expected no authority")
	}
	addrs := st.Addresses
	if len(addrs) != 2 {
		t.Fatalf("len(addrs)=%d, want 2", len(addrs))
	}
	if addrs[0] != a || addrs[1] != b {
		t.Fatalf("unexpected addresses")
	}
}

func TestDecodeAddressLookupTable_Truncated(t *testing.T) {
	if _, err := DecodeAddressLookupTable(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
	tooShort := make([]byte, 55)
	if _, err := DecodeAddressLookupTable(tooShort); err == nil {
		t.Fatalf("expected error for short data")
	}
}

func TestAddressLookupTable_EncodeDecodeRoundTrip(t *testing.T) {
	auth := filled(0x7A)
	in := AddressLookupTableState{
		DeactivationSlot:           math.MaxUint64,
		LastExtendedSlot:           77,
		LastExtendedSlotStartIndex: 1,
		Authority:                  &auth,
		Addresses:                  []Pubkey{filled(1), filled(2), filled(3)},
	}
	data, err := EncodeAddressLookupTable(in)
	if err != nil {
		t.Fatalf("EncodeAddressLookupTable: %v", err)
	}
	if len(data) != 56+3*32 {
		t.Fatalf("len=%d", len(data))
	}
	out, err := DecodeAddressLookupTable(data)
	if err != nil {
		t.Fatalf("DecodeAddressLookupTable: %v", err)
	}
	if !out.IsActive() || out.LastExtendedSlot != 77 || out.LastExtendedSlotStartIndex != 1 {
		t.Fatalf("meta mismatch: %+v", out)
	}
	if out.Authority == nil || *out.Authority != auth {
		t.Fatalf("authority mismatch")
	}
	if len(out.Addresses) != 3 || out.Addresses[2] != filled(3) {
		t.Fatalf("addresses mismatch")
	}

	in.Authority = nil
	in.DeactivationSlot = 10
	data, _ = EncodeAddressLookupTable(in)
	out, err = DecodeAddressLookupTable(data)
	if err != nil {
		t.Fatalf("DecodeAddressLookupTable: %v", err)
	}
	if out.Authority != nil || out.IsActive() {
		t.Fatalf("expected frozen, deactivated table")
	}
}

func TestDecodeAddressLookupTable_RejectsBadFields(t *testing.T) {
	data, err := EncodeAddressLookupTable(AddressLookupTableState{Addresses: []Pubkey{filled(1)}})
	if err != nil {
		t.Fatalf("EncodeAddressLookupTable: %v", err)
	}

	badAuth := append([]byte{}, data...)
	badAuth[21] = 2
	badDiscr := append([]byte{}, data...)
	badDiscr[0] = 2
	misaligned := append(append([]byte{}, data...), 0)

	for name, b := range map[string][]byte{"has_authority": badAuth, "discriminator": badDiscr, "alignment": misaligned} {
		if _, err := DecodeAddressLookupTable(b); err != ErrInvalidAddressLookupTable {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
	if _, err := EncodeAddressLookupTable(AddressLookupTableState{Addresses: make([]Pubkey, 257)}); err == nil {
		t.Fatalf("expected error for oversized table")
	}
}
