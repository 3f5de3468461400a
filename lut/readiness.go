package lut

import (
	"fmt"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

const (
	// DefaultCooldown makes a range usable one slot after it was appended.
	DefaultCooldown uint64 = 1

	// DefaultDeactivationGrace matches the depth of the slot-hashes history
	// a transaction may still reference a table through.
	DefaultDeactivationGrace uint64 = 513
)

// Validator answers read-side questions about a table at a given slot.
type Validator struct {
	Cooldown uint64
}

func NewValidator(cooldown uint64) Validator {
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	return Validator{Cooldown: cooldown}
}

func (v Validator) cooldown() uint64 {
	if v.Cooldown == 0 {
		return DefaultCooldown
	}
	return v.Cooldown
}

func (v Validator) elapsed(activated, slot uint64) bool {
	return slot >= activated && slot-activated >= v.cooldown()
}

// IsReady reports whether t has cleared the cooldown that follows its
// creation.
func (v Validator) IsReady(t *Table, slot uint64) bool {
	return t != nil && v.elapsed(t.CreatedSlot, slot)
}

// IndexReady reports whether the range holding index i has cleared its
// cooldown. Out-of-range indices are never ready.
func (v Validator) IndexReady(t *Table, i int, slot uint64) bool {
	if !v.IsReady(t, slot) || i < 0 || i >= t.Len() {
		return false
	}
	return v.elapsed(t.rangeOf(i).Slot, slot)
}

// ReadyLen is the number of leading addresses usable at slot. Range slots
// never decrease, so the usable entries always form a prefix.
func (v Validator) ReadyLen(t *Table, slot uint64) int {
	if !v.IsReady(t, slot) {
		return 0
	}
	n := 0
	for i, r := range t.Ranges {
		if !v.elapsed(r.Slot, slot) {
			break
		}
		if i+1 < len(t.Ranges) {
			n = t.Ranges[i+1].Start
		} else {
			n = t.Len()
		}
	}
	return n
}

// Resolve returns the address at index i. Deactivation does not affect
// reads.
func (v Validator) Resolve(t *Table, i int, slot uint64) (solana.Pubkey, error) {
	if !v.IsReady(t, slot) {
		return solana.Pubkey{}, ErrLutNotReady
	}
	if i < 0 || i >= t.Len() {
		return solana.Pubkey{}, fmt.Errorf("%w: index %d, table holds %d", ErrIndexOutOfRange, i, t.Len())
	}
	if r := t.rangeOf(i); !v.elapsed(r.Slot, slot) {
		return solana.Pubkey{}, fmt.Errorf("%w: index %d activated at slot %d", ErrLutNotReady, i, r.Slot)
	}
	return t.Addresses[i], nil
}

// ResolveIndexes resolves a message's writable or readonly index list
// against t, failing on the first unusable entry.
func (v Validator) ResolveIndexes(t *Table, indexes []uint8, slot uint64) ([]solana.Pubkey, error) {
	out := make([]solana.Pubkey, 0, len(indexes))
	for _, ix := range indexes {
		pk, err := v.Resolve(t, int(ix), slot)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// View restricts t to the addresses usable at slot, in the shape the v0
// message compiler consumes.
func (v Validator) View(t *Table, slot uint64) solana.LookupTable {
	n := v.ReadyLen(t, slot)
	return solana.LookupTable{
		AccountKey: t.Address,
		Addresses:  append([]solana.Pubkey(nil), t.Addresses[:n]...),
	}
}

// Closable reports whether a deactivated table has outlived grace slots
// and may be removed from storage.
func Closable(t *Table, slot, grace uint64) bool {
	at, ok := t.Deactivation()
	if !ok {
		return false
	}
	return slot >= at && slot-at > grace
}
