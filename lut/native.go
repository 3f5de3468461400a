package lut

import (
	"fmt"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

// FromNative converts an account of the native lookup table program into
// a read-only Table. The native layout only remembers where the last
// extension started, so everything before that index is treated as
// activated at slot 0. Seed and bump are unknown; such tables can be
// resolved but not mutated through a Registry.
func FromNative(key solana.Pubkey, s solana.AddressLookupTableState) (*Table, error) {
	t := &Table{
		Address:          key,
		State:            StateActive,
		DeactivationSlot: s.DeactivationSlot,
		Addresses:        append([]solana.Pubkey(nil), s.Addresses...),
	}
	if s.Authority == nil {
		t.State = StateFrozen
	} else {
		t.Authority = *s.Authority
	}
	if !s.IsActive() {
		t.State = t.State.deactivate()
	}

	if n := len(s.Addresses); n > 0 {
		start := int(s.LastExtendedSlotStartIndex)
		if start >= n {
			return nil, fmt.Errorf("%w: start index %d with %d addresses", ErrMalformedTable, start, n)
		}
		if start == 0 || s.LastExtendedSlot == 0 {
			t.Ranges = []Range{{Start: 0, Slot: s.LastExtendedSlot}}
		} else {
			t.Ranges = []Range{{Start: 0, Slot: 0}, {Start: start, Slot: s.LastExtendedSlot}}
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ToNative lays t out as a native lookup table account. Only the latest
// range survives the conversion.
func ToNative(t *Table) (solana.AddressLookupTableState, error) {
	if err := t.Validate(); err != nil {
		return solana.AddressLookupTableState{}, err
	}
	out := solana.AddressLookupTableState{
		DeactivationSlot: t.DeactivationSlot,
		LastExtendedSlot: t.ActivationSlot(),
		Addresses:        append([]solana.Pubkey(nil), t.Addresses...),
	}
	if n := len(t.Ranges); n > 0 {
		out.LastExtendedSlotStartIndex = uint8(t.Ranges[n-1].Start)
	}
	if !t.State.Frozen() {
		auth := t.Authority
		out.Authority = &auth
	}
	return out, nil
}
