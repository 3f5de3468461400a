package lut

import (
	"fmt"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

// Registry applies lifecycle transitions to tables owned by one program.
// Every method takes the current snapshot and returns the next one; the
// input is never modified, so a rejected call leaves the caller's copy
// exactly as it was.
type Registry struct {
	ProgramID solana.Pubkey
}

func NewRegistry(programID solana.Pubkey) Registry {
	return Registry{ProgramID: programID}
}

type CreateRequest struct {
	// Table is the account the caller claims; it must equal
	// DeriveTableAddress(ProgramID, Authority, Seed).
	Table     solana.Pubkey
	Authority solana.Pubkey
	Seed      uint64
	Addresses []solana.Pubkey
}

// Create builds a new table activated at slot. occupied reports whether
// the target account already holds data.
func (r Registry) Create(req CreateRequest, occupied bool, slot uint64) (*Table, error) {
	if occupied {
		return nil, fmt.Errorf("%w: %s", ErrAccountOccupied, req.Table)
	}
	if req.Authority.IsZero() {
		return nil, fmt.Errorf("%w: missing authority", ErrMalformedTable)
	}
	if req.Seed > slot {
		return nil, fmt.Errorf("%w: seed slot %d is ahead of slot %d", ErrDerivationMismatch, req.Seed, slot)
	}
	want, bump, err := DeriveTableAddress(r.ProgramID, req.Authority, req.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	if want != req.Table {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrDerivationMismatch, req.Table, want)
	}

	addrs := appendUnique(nil, req.Addresses)
	if len(addrs) > MaxAddresses {
		return nil, fmt.Errorf("%w: %d seed addresses", ErrMaxAddressesExceeded, len(addrs))
	}

	t := &Table{
		Address:          req.Table,
		Authority:        req.Authority,
		Seed:             req.Seed,
		Bump:             bump,
		State:            StateActive,
		CreatedSlot:      slot,
		DeactivationSlot: NotDeactivated,
	}
	if len(addrs) > 0 {
		t.Ranges = []Range{{Start: 0, Slot: slot}}
		t.Addresses = addrs
	}
	return t, nil
}

// Extend appends addrs to t, skipping any already present. The new
// entries form a range activated at slot; entries appended earlier keep
// their own activation.
func (r Registry) Extend(t *Table, key, caller solana.Pubkey, addrs []solana.Pubkey, slot uint64) (*Table, error) {
	if err := r.verify(t, key); err != nil {
		return nil, err
	}
	if caller != t.Authority {
		return nil, ErrUnauthorized
	}
	if t.State.Frozen() {
		return nil, ErrFrozen
	}
	if t.State.Deactivated() {
		return nil, ErrDeactivated
	}
	if last := t.ActivationSlot(); slot < last {
		return nil, fmt.Errorf("%w: slot %d precedes activation slot %d", ErrLutNotReady, slot, last)
	}

	fresh := appendUnique(t, addrs)
	if len(fresh) == 0 {
		return t.Clone(), nil
	}
	if t.Len()+len(fresh) > MaxAddresses {
		return nil, fmt.Errorf("%w: table holds %d, extension adds %d", ErrMaxAddressesExceeded, t.Len(), len(fresh))
	}

	next := t.Clone()
	start := next.Len()
	next.Addresses = append(next.Addresses, fresh...)
	// Same-slot extensions share the range that is already cooling down.
	if n := len(next.Ranges); n == 0 || next.Ranges[n-1].Slot != slot {
		next.Ranges = append(next.Ranges, Range{Start: start, Slot: slot})
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// Freeze permanently ends extension of t. Reads stay open.
func (r Registry) Freeze(t *Table, key, caller solana.Pubkey) (*Table, error) {
	if err := r.verify(t, key); err != nil {
		return nil, err
	}
	if caller != t.Authority {
		return nil, ErrUnauthorized
	}
	if t.State.Frozen() {
		return nil, ErrAlreadyFrozen
	}
	if t.State.Deactivated() {
		return nil, ErrDeactivated
	}
	next := t.Clone()
	next.State = next.State.freeze()
	return next, nil
}

// Deactivate schedules t for removal at slot. Frozen tables may still be
// deactivated by their authority.
func (r Registry) Deactivate(t *Table, key, caller solana.Pubkey, slot uint64) (*Table, error) {
	if err := r.verify(t, key); err != nil {
		return nil, err
	}
	if caller != t.Authority {
		return nil, ErrUnauthorized
	}
	if t.State.Deactivated() {
		return nil, ErrAlreadyDeactivated
	}
	if slot == NotDeactivated {
		return nil, fmt.Errorf("%w: deactivation slot %d is reserved", ErrMalformedTable, slot)
	}
	if last := t.ActivationSlot(); slot < last {
		return nil, fmt.Errorf("%w: slot %d precedes activation slot %d", ErrLutNotReady, slot, last)
	}
	next := t.Clone()
	next.State = next.State.deactivate()
	next.DeactivationSlot = slot
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// verify guards every mutation: t must be the well-formed table stored at
// key, derived from its own authority and seed under r.ProgramID.
func (r Registry) verify(t *Table, key solana.Pubkey) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Address != key {
		return fmt.Errorf("%w: record for %s stored at %s", ErrDerivationMismatch, t.Address, key)
	}
	return verifyDerivation(r.ProgramID, t)
}
