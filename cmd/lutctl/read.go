package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
	"github.com/Abdullah1738/juno-luts/offchain/solanafees"
)

type chainTable struct {
	Address  solana.Pubkey `json:"address"`
	Native   nativeSummary `json:"native"`
	Len      int           `json:"len"`
	ReadyLen int           `json:"ready_len"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		authority string
		chain     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tables in the registry, or on chain with --chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var auth solana.Pubkey
			if authority != "" {
				var err error
				if auth, err = parseKeyArg("--authority", authority); err != nil {
					return err
				}
			}
			if chain {
				return a.listChain(cmd, auth)
			}
			svc, closeFn, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := a.context(cmd)
			defer cancel()
			tables, err := svc.List(ctx, auth)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tables)
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "Only tables owned by this authority")
	cmd.Flags().BoolVar(&chain, "chain", false, "List the authority's native tables over RPC instead of the local registry")
	return cmd
}

// listChain lists the native tables an authority owns, with the prefix
// usable at the cluster's current slot.
func (a *app) listChain(cmd *cobra.Command, auth solana.Pubkey) error {
	if auth.IsZero() {
		return errors.New("--chain requires --authority")
	}
	p, d, err := a.params()
	if err != nil {
		return err
	}
	rpc, err := a.rpcClient(d)
	if err != nil {
		return err
	}
	ctx, cancel := a.context(cmd)
	defer cancel()

	accounts, err := rpc.LookupTablesByAuthority(ctx, auth)
	if err != nil {
		return err
	}
	slot, err := rpc.Slot(ctx)
	if err != nil {
		return err
	}
	v := lut.NewValidator(p.Cooldown)
	out := make([]chainTable, 0, len(accounts))
	for _, acc := range accounts {
		t, err := lut.FromNative(acc.Pubkey, acc.State)
		if err != nil {
			return fmt.Errorf("table %s: %w", acc.Pubkey, err)
		}
		out = append(out, chainTable{
			Address:  acc.Pubkey,
			Native:   summarize(acc.State),
			Len:      t.Len(),
			ReadyLen: v.ReadyLen(t, slot),
		})
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <table> <index>",
		Short: "Resolve an index to an address at the current slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			svc, closeFn, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := a.context(cmd)
			defer cancel()
			pk, err := svc.Resolve(ctx, key, index)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"index": index, "address": pk})
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var native bool
	cmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Print a stored table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := a.context(cmd)
			defer cancel()
			t, err := svc.Get(ctx, key)
			if err != nil {
				return err
			}
			if !native {
				return printJSON(cmd.OutOrStdout(), t)
			}
			data, err := encodeNative(t)
			if err != nil {
				return err
			}
			rent, err := solanafees.LookupTableRentLamports(t.Len())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"address":              t.Address,
				"data":                 hex.EncodeToString(data),
				"rent_exempt_lamports": rent,
			})
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "Print the on-chain account encoding as hex")
	return cmd
}

func encodeNative(t *lut.Table) ([]byte, error) {
	s, err := lut.ToNative(t)
	if err != nil {
		return nil, err
	}
	return solana.EncodeAddressLookupTable(s)
}

func newReadyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ready <table>",
		Short: "Report how much of a table is usable at the current slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := a.context(cmd)
			defer cancel()
			r, err := svc.Readiness(ctx, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}
