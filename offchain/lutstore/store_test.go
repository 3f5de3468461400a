package lutstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

func fill(b byte) solana.Pubkey {
	var pk solana.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func newTable(t *testing.T, authority solana.Pubkey, seed uint64, n int) *lut.Table {
	t.Helper()
	reg := lut.NewRegistry(solana.AddressLookupTableProgramID)
	addr, _, err := lut.DeriveTableAddress(reg.ProgramID, authority, seed)
	require.NoError(t, err)

	addrs := make([]solana.Pubkey, 0, n)
	for i := 0; i < n; i++ {
		var pk solana.Pubkey
		pk[0] = byte(i)
		pk[1] = 0x5a
		addrs = append(addrs, pk)
	}
	tbl, err := reg.Create(lut.CreateRequest{Table: addr, Authority: authority, Seed: seed, Addresses: addrs}, false, seed)
	require.NoError(t, err)
	return tbl
}

func stores(t *testing.T) map[string]Store {
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "luts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	mem, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]Store{
		"mem":           NewMemStore(),
		"sqlite":        sq,
		"sqlite-memory": mem,
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tbl := newTable(t, fill(0xA1), 10, 3)

			_, err := s.Get(ctx, tbl.Address)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, tbl))
			got, err := s.Get(ctx, tbl.Address)
			require.NoError(t, err)
			assert.Equal(t, tbl, got)

			got.Addresses[0] = fill(0xFF)
			again, err := s.Get(ctx, tbl.Address)
			require.NoError(t, err)
			assert.Equal(t, tbl.Addresses[0], again.Addresses[0])

			reg := lut.NewRegistry(solana.AddressLookupTableProgramID)
			frozen, err := reg.Freeze(tbl, tbl.Address, tbl.Authority)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, frozen))
			got, err = s.Get(ctx, tbl.Address)
			require.NoError(t, err)
			assert.Equal(t, lut.StateFrozen, got.State)

			require.NoError(t, s.Delete(ctx, tbl.Address))
			require.ErrorIs(t, s.Delete(ctx, tbl.Address), ErrNotFound)
			_, err = s.Get(ctx, tbl.Address)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a1 := newTable(t, fill(0xA1), 10, 1)
			a2 := newTable(t, fill(0xA1), 11, 0)
			b1 := newTable(t, fill(0xB2), 10, 2)
			for _, tbl := range []*lut.Table{a1, a2, b1} {
				require.NoError(t, s.Put(ctx, tbl))
			}

			all, err := s.List(ctx, solana.Pubkey{})
			require.NoError(t, err)
			assert.ElementsMatch(t, []solana.Pubkey{a1.Address, a2.Address, b1.Address}, all)
			for i := 1; i < len(all); i++ {
				assert.Negative(t, compareKeys(all[i-1], all[i]))
			}

			mine, err := s.List(ctx, fill(0xA1))
			require.NoError(t, err)
			assert.ElementsMatch(t, []solana.Pubkey{a1.Address, a2.Address}, mine)

			none, err := s.List(ctx, fill(0xC3))
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luts.db")
	ctx := context.Background()
	tbl := newTable(t, fill(0xA1), 10, 4)

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, tbl))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, tbl.Address)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestStore_AnchorIsWriteOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := s.Anchor(ctx, "genesis_unix_ms", 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), got)

			got, err = s.Anchor(ctx, "genesis_unix_ms", 2000)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), got)

			got, err = s.Anchor(ctx, "other", 7)
			require.NoError(t, err)
			assert.Equal(t, int64(7), got)
		})
	}
}

func TestSQLiteStore_AnchorSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luts.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Anchor(ctx, "genesis_unix_ms", 1000)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Anchor(ctx, "genesis_unix_ms", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
}

func TestCodec(t *testing.T) {
	tbl := newTable(t, fill(0xA1), 10, 2)

	first, err := encodeTable(tbl)
	require.NoError(t, err)
	second, err := encodeTable(tbl.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	back, err := decodeTable(first)
	require.NoError(t, err)
	assert.Equal(t, tbl, back)

	_, err = decodeTable([]byte{0xff})
	require.Error(t, err)

	raw, err := encMode.Marshal(record{Version: 99, Table: tbl})
	require.NoError(t, err)
	_, err = decodeTable(raw)
	require.ErrorContains(t, err, "version 99")
}

func compareKeys(a, b solana.Pubkey) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
