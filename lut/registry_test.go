package lut_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var (
	programID = solana.AddressLookupTableProgramID
	authA     = key(0xA1)
	authB     = key(0xB2)
)

func key(b byte) solana.Pubkey {
	var pk solana.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

// addrs returns n distinct addresses tagged with tag.
func addrs(tag byte, n int) []solana.Pubkey {
	out := make([]solana.Pubkey, 0, n)
	for i := 0; i < n; i++ {
		var pk solana.Pubkey
		pk[0] = tag
		pk[1] = byte(i)
		pk[2] = byte(i >> 8)
		pk[31] = 0x7f
		out = append(out, pk)
	}
	return out
}

func createReq(t *testing.T, authority solana.Pubkey, seed uint64, seeded []solana.Pubkey) lut.CreateRequest {
	t.Helper()
	addr, _, err := lut.DeriveTableAddress(programID, authority, seed)
	require.NoError(t, err)
	return lut.CreateRequest{Table: addr, Authority: authority, Seed: seed, Addresses: seeded}
}

func mustCreate(t *testing.T, seeded []solana.Pubkey, slot uint64) (lut.Registry, *lut.Table) {
	t.Helper()
	reg := lut.NewRegistry(programID)
	tbl, err := reg.Create(createReq(t, authA, slot, seeded), false, slot)
	require.NoError(t, err)
	return reg, tbl
}

func TestCreate(t *testing.T) {
	seeded := addrs(1, 2)
	reg, tbl := mustCreate(t, seeded, 10)

	assert.Equal(t, authA, tbl.Authority)
	assert.Equal(t, lut.StateActive, tbl.State)
	assert.False(t, tbl.Frozen())
	assert.Equal(t, uint64(10), tbl.ActivationSlot())
	assert.Equal(t, lut.NotDeactivated, tbl.DeactivationSlot)
	assert.Equal(t, seeded, tbl.Addresses)
	require.NoError(t, tbl.Validate())

	_, ok := tbl.Deactivation()
	assert.False(t, ok)

	empty, err := reg.Create(createReq(t, authB, 10, nil), false, 10)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Ranges)
	assert.Equal(t, uint64(10), empty.ActivationSlot())
}

func TestCreate_Rejects(t *testing.T) {
	reg := lut.NewRegistry(programID)

	_, err := reg.Create(createReq(t, authA, 5, nil), true, 10)
	require.ErrorIs(t, err, lut.ErrAccountOccupied)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)

	req := createReq(t, authA, 5, nil)
	req.Table = key(0x01)
	_, err = reg.Create(req, false, 10)
	require.ErrorIs(t, err, lut.ErrDerivationMismatch)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)

	// Address derived for authA cannot be claimed by authB.
	req = createReq(t, authA, 5, nil)
	req.Authority = authB
	_, err = reg.Create(req, false, 10)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)

	_, err = reg.Create(createReq(t, authA, 11, nil), false, 10)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)

	_, err = reg.Create(createReq(t, solana.Pubkey{}, 5, nil), false, 10)
	require.ErrorIs(t, err, lut.ErrMalformedTable)

	_, err = reg.Create(createReq(t, authA, 5, addrs(1, lut.MaxAddresses+1)), false, 10)
	require.ErrorIs(t, err, lut.ErrMaxAddressesExceeded)
}

func TestCreate_DeduplicatesSeedAddresses(t *testing.T) {
	a := addrs(1, 3)
	_, tbl := mustCreate(t, []solana.Pubkey{a[0], a[1], a[0], a[2], a[1]}, 10)
	assert.Equal(t, a, tbl.Addresses)
}

func TestScenario_CapacityAndCooldown(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	v := lut.NewValidator(1)

	assert.False(t, v.IsReady(tbl, 10))
	assert.True(t, v.IsReady(tbl, 11))

	_, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 255), 11)
	require.ErrorIs(t, err, lut.ErrMaxAddressesExceeded)
	assert.Equal(t, 2, tbl.Len())

	full, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 254), 11)
	require.NoError(t, err)
	assert.Equal(t, lut.MaxAddresses, full.Len())
	assert.Equal(t, 2, tbl.Len(), "input snapshot must not change")

	_, err = reg.Extend(full, full.Address, authA, addrs(3, 1), 12)
	require.ErrorIs(t, err, lut.ErrMaxAddressesExceeded)
	assert.Equal(t, lut.MaxAddresses, full.Len())
}

func TestExtend_AppendOnlyIndices(t *testing.T) {
	first := addrs(1, 3)
	reg, tbl := mustCreate(t, first, 10)
	v := lut.NewValidator(1)

	second := addrs(2, 4)
	next, err := reg.Extend(tbl, tbl.Address, authA, second, 20)
	require.NoError(t, err)
	third := addrs(3, 2)
	next, err = reg.Extend(next, next.Address, authA, third, 30)
	require.NoError(t, err)

	want := append(append(append([]solana.Pubkey{}, first...), second...), third...)
	require.Equal(t, want, next.Addresses)
	for i, pk := range want {
		got, err := v.Resolve(next, i, 100)
		require.NoError(t, err)
		assert.Equal(t, pk, got, "index %d", i)
	}
	assert.Equal(t, []lut.Range{{Start: 0, Slot: 10}, {Start: 3, Slot: 20}, {Start: 7, Slot: 30}}, next.Ranges)
	assert.Equal(t, uint64(30), next.ActivationSlot())
}

func TestExtend_FiltersDuplicates(t *testing.T) {
	a := addrs(1, 2)
	reg, tbl := mustCreate(t, a, 10)

	fresh := addrs(2, 1)[0]
	next, err := reg.Extend(tbl, tbl.Address, authA, []solana.Pubkey{a[0], fresh, fresh}, 11)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Len())
	assert.Equal(t, fresh, next.Addresses[2])

	same, err := reg.Extend(next, next.Address, authA, []solana.Pubkey{a[1], fresh}, 12)
	require.NoError(t, err)
	assert.Equal(t, next, same)
	assert.Equal(t, uint64(11), same.ActivationSlot(), "no-op extension must not restart cooldown")
}

func TestExtend_SameSlotSharesRange(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)

	next, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 2), 10)
	require.NoError(t, err)
	assert.Equal(t, []lut.Range{{Start: 0, Slot: 10}}, next.Ranges)

	reg, empty := mustCreate(t, nil, 10)
	next, err = reg.Extend(empty, empty.Address, authA, addrs(2, 2), 10)
	require.NoError(t, err)
	assert.Equal(t, []lut.Range{{Start: 0, Slot: 10}}, next.Ranges)
}

func TestExtend_SlotRegression(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	_, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 1), 9)
	require.ErrorIs(t, err, lut.ErrLutNotReady)
}

func TestExtend_RequiresAuthority(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	_, err := reg.Extend(tbl, tbl.Address, authB, addrs(2, 1), 11)
	require.ErrorIs(t, err, lut.ErrUnauthorized)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)
}

func TestFreeze(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)

	_, err := reg.Freeze(tbl, tbl.Address, authB)
	require.ErrorIs(t, err, lut.ErrUnauthorized)

	frozen, err := reg.Freeze(tbl, tbl.Address, authA)
	require.NoError(t, err)
	assert.True(t, frozen.Frozen())
	assert.False(t, tbl.Frozen())

	_, err = reg.Extend(frozen, frozen.Address, authA, addrs(2, 1), 11)
	require.ErrorIs(t, err, lut.ErrFrozen)
	_, err = reg.Extend(frozen, frozen.Address, authB, addrs(2, 1), 11)
	require.ErrorIs(t, err, lut.ErrUnauthorized)

	_, err = reg.Freeze(frozen, frozen.Address, authA)
	require.ErrorIs(t, err, lut.ErrAlreadyFrozen)

	got, err := lut.NewValidator(1).Resolve(frozen, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, tbl.Addresses[1], got)
}

func TestDeactivate(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	v := lut.NewValidator(1)

	_, err := reg.Deactivate(tbl, tbl.Address, authB, 12)
	require.ErrorIs(t, err, lut.ErrUnauthorized)

	dead, err := reg.Deactivate(tbl, tbl.Address, authA, 12)
	require.NoError(t, err)
	at, ok := dead.Deactivation()
	require.True(t, ok)
	assert.Equal(t, uint64(12), at)
	assert.Equal(t, lut.StateDeactivated, dead.State)

	got, err := v.Resolve(dead, 0, 13)
	require.NoError(t, err)
	assert.Equal(t, tbl.Addresses[0], got)

	_, err = reg.Extend(dead, dead.Address, authA, addrs(2, 1), 13)
	require.ErrorIs(t, err, lut.ErrDeactivated)
	_, err = reg.Freeze(dead, dead.Address, authA)
	require.ErrorIs(t, err, lut.ErrDeactivated)
	_, err = reg.Deactivate(dead, dead.Address, authA, 14)
	require.ErrorIs(t, err, lut.ErrAlreadyDeactivated)
}

func TestDeactivate_RejectsBadSlots(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	grown, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 1), 14)
	require.NoError(t, err)

	_, err = reg.Deactivate(grown, grown.Address, authA, 13)
	require.ErrorIs(t, err, lut.ErrLutNotReady)

	_, err = reg.Deactivate(grown, grown.Address, authA, lut.NotDeactivated)
	require.ErrorIs(t, err, lut.ErrMalformedTable)
	assert.False(t, grown.State.Deactivated())

	dead, err := reg.Deactivate(grown, grown.Address, authA, 14)
	require.NoError(t, err)
	require.NoError(t, dead.Validate())
}

func TestMutations_CheckAuthorityFirst(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	dead, err := reg.Deactivate(tbl, tbl.Address, authA, 11)
	require.NoError(t, err)

	_, err = reg.Extend(dead, dead.Address, authB, addrs(2, 1), 12)
	require.ErrorIs(t, err, lut.ErrUnauthorized)
	_, err = reg.Freeze(dead, dead.Address, authB)
	require.ErrorIs(t, err, lut.ErrUnauthorized)
	_, err = reg.Deactivate(dead, dead.Address, authB, 12)
	require.ErrorIs(t, err, lut.ErrUnauthorized)
}

func TestDeactivate_FrozenTable(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)
	frozen, err := reg.Freeze(tbl, tbl.Address, authA)
	require.NoError(t, err)

	dead, err := reg.Deactivate(frozen, frozen.Address, authA, 15)
	require.NoError(t, err)
	assert.Equal(t, lut.StateFrozenDeactivated, dead.State)
	assert.True(t, dead.Frozen())
}

func TestMutations_RejectForeignRecords(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 2), 10)

	_, err := reg.Extend(tbl, key(0x33), authA, addrs(2, 1), 11)
	require.ErrorIs(t, err, lut.ErrDerivationMismatch)

	forged := tbl.Clone()
	forged.Authority = authB
	_, err = reg.Extend(forged, forged.Address, authB, addrs(2, 1), 11)
	require.ErrorIs(t, err, lut.ErrDerivationMismatch)
	_, err = reg.Deactivate(forged, forged.Address, authB, 11)
	require.ErrorIs(t, err, lut.ErrDerivationMismatch)

	other := lut.NewRegistry(key(0x44))
	_, err = other.Freeze(tbl, tbl.Address, authA)
	require.ErrorIs(t, err, lut.ErrInvalidLookupTable)

	_, err = reg.Freeze(nil, tbl.Address, authA)
	require.ErrorIs(t, err, lut.ErrMalformedTable)
}

func TestMutations_FailureLeavesTableUnchanged(t *testing.T) {
	reg, tbl := mustCreate(t, addrs(1, 200), 10)
	before := tbl.Clone()

	_, err := reg.Extend(tbl, tbl.Address, authA, addrs(2, 57), 11)
	require.Error(t, err)
	_, err = reg.Extend(tbl, tbl.Address, authB, addrs(2, 1), 11)
	require.Error(t, err)
	_, err = reg.Freeze(tbl, tbl.Address, authB)
	require.Error(t, err)
	_, err = reg.Deactivate(tbl, tbl.Address, authB, 11)
	require.Error(t, err)

	assert.Equal(t, before, tbl)
}

func TestDeriveUserTablePointer(t *testing.T) {
	a, bumpA, err := lut.DeriveUserTablePointer(programID, authA)
	require.NoError(t, err)
	b, _, err := lut.DeriveUserTablePointer(programID, authB)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	again, bump, err := lut.DeriveUserTablePointer(programID, authA)
	require.NoError(t, err)
	assert.Equal(t, a, again)
	assert.Equal(t, bumpA, bump)
}
