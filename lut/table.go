package lut

import (
	"fmt"
	"math"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

const (
	// MaxAddresses is the capacity of a table; indices fit in a u8.
	MaxAddresses = 256

	// NotDeactivated is the DeactivationSlot of a table that has not been
	// scheduled for removal.
	NotDeactivated uint64 = math.MaxUint64
)

// State is the lifecycle position of a table. Freezing and deactivation
// are independent and one-way, so the four values cover every legal
// combination.
type State uint8

const (
	StateActive State = iota
	StateFrozen
	StateDeactivated
	StateFrozenDeactivated
)

func (s State) Frozen() bool {
	return s == StateFrozen || s == StateFrozenDeactivated
}

func (s State) Deactivated() bool {
	return s == StateDeactivated || s == StateFrozenDeactivated
}

func (s State) valid() bool { return s <= StateFrozenDeactivated }

func (s State) freeze() State {
	if s.Deactivated() {
		return StateFrozenDeactivated
	}
	return StateFrozen
}

func (s State) deactivate() State {
	if s.Frozen() {
		return StateFrozenDeactivated
	}
	return StateDeactivated
}

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFrozen:
		return "frozen"
	case StateDeactivated:
		return "deactivated"
	case StateFrozenDeactivated:
		return "frozen-deactivated"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid table state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for c := StateActive; c <= StateFrozenDeactivated; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("invalid table state %q", string(b))
}

// Range is a contiguous run of addresses appended in the same slot. It
// covers indices [Start, next range's Start).
type Range struct {
	Start int    `json:"start"`
	Slot  uint64 `json:"slot"`
}

// Table is one lookup table account. Values handed out by Registry are
// fresh snapshots; callers must not share them across mutations.
type Table struct {
	Address   solana.Pubkey `json:"address"`
	Authority solana.Pubkey `json:"authority"`
	Seed      uint64        `json:"seed"`
	Bump      uint8         `json:"bump"`

	State            State  `json:"state"`
	CreatedSlot      uint64 `json:"created_slot"`
	DeactivationSlot uint64 `json:"deactivation_slot"`

	Ranges    []Range         `json:"ranges"`
	Addresses []solana.Pubkey `json:"addresses"`
}

func (t *Table) Len() int { return len(t.Addresses) }

func (t *Table) Frozen() bool { return t.State.Frozen() }

// Deactivation reports the slot the table was deactivated at.
func (t *Table) Deactivation() (uint64, bool) {
	if !t.State.Deactivated() {
		return 0, false
	}
	return t.DeactivationSlot, true
}

// ActivationSlot is the slot of the most recent create or extend.
func (t *Table) ActivationSlot() uint64 {
	if n := len(t.Ranges); n > 0 {
		return t.Ranges[n-1].Slot
	}
	return t.CreatedSlot
}

// rangeOf returns the range holding index i. i must be in bounds.
func (t *Table) rangeOf(i int) Range {
	r := t.Ranges[0]
	for _, next := range t.Ranges[1:] {
		if next.Start > i {
			break
		}
		r = next
	}
	return r
}

func (t *Table) IndexOf(pk solana.Pubkey) (int, bool) {
	for i, a := range t.Addresses {
		if a == pk {
			return i, true
		}
	}
	return 0, false
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := *t
	out.Ranges = append([]Range(nil), t.Ranges...)
	out.Addresses = append([]solana.Pubkey(nil), t.Addresses...)
	return &out
}

// Validate checks the structural invariants every stored table satisfies.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrMalformedTable)
	}
	if !t.State.valid() {
		return fmt.Errorf("%w: unknown state %d", ErrMalformedTable, uint8(t.State))
	}
	if t.State.Deactivated() == (t.DeactivationSlot == NotDeactivated) {
		return fmt.Errorf("%w: state %s with deactivation slot %d", ErrMalformedTable, t.State, t.DeactivationSlot)
	}
	if len(t.Addresses) > MaxAddresses {
		return fmt.Errorf("%w: %d addresses", ErrMalformedTable, len(t.Addresses))
	}

	if len(t.Addresses) == 0 {
		if len(t.Ranges) != 0 {
			return fmt.Errorf("%w: ranges without addresses", ErrMalformedTable)
		}
	} else if len(t.Ranges) == 0 || t.Ranges[0].Start != 0 {
		return fmt.Errorf("%w: first range must start at index 0", ErrMalformedTable)
	}
	prevSlot := t.CreatedSlot
	for i, r := range t.Ranges {
		if r.Start >= len(t.Addresses) {
			return fmt.Errorf("%w: range %d starts past the last address", ErrMalformedTable, i)
		}
		if i > 0 && r.Start <= t.Ranges[i-1].Start {
			return fmt.Errorf("%w: range %d does not advance", ErrMalformedTable, i)
		}
		if r.Slot < prevSlot || (i > 0 && r.Slot == prevSlot) {
			return fmt.Errorf("%w: range %d slot %d out of order", ErrMalformedTable, i, r.Slot)
		}
		prevSlot = r.Slot
	}

	seen := make(map[solana.Pubkey]struct{}, len(t.Addresses))
	for i, a := range t.Addresses {
		if _, ok := seen[a]; ok {
			return fmt.Errorf("%w: duplicate address %s at index %d", ErrMalformedTable, a, i)
		}
		seen[a] = struct{}{}
	}
	return nil
}

// appendUnique returns the members of in not already present in t or
// earlier in in, keeping their order.
func appendUnique(t *Table, in []solana.Pubkey) []solana.Pubkey {
	seen := make(map[solana.Pubkey]struct{}, len(in))
	if t != nil {
		for _, a := range t.Addresses {
			seen[a] = struct{}{}
		}
	}
	var out []solana.Pubkey
	for _, a := range in {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
