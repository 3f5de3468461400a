package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/internal/lutservice"
	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		authority string
		table     string
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "create [address...]",
		Short: "Create a table, optionally seeded with addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := parseKeyArg("--authority", authority)
			if err != nil {
				return err
			}
			seeds, err := solana.ParsePubkeys(args)
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

			p := lutservice.CreateParams{Authority: auth, Seed: seed, Addresses: seeds}
			if !cmd.Flags().Changed("seed") {
				if p.Seed, err = svc.Slot(ctx); err != nil {
					return err
				}
			}
			if table != "" {
				if p.Table, err = parseKeyArg("--table", table); err != nil {
					return err
				}
			}
			t, err := svc.Create(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	authorityFlag(cmd, &authority)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Derivation seed slot (default: current slot)")
	cmd.Flags().StringVar(&table, "table", "", "Claimed table address (default: derived)")
	return cmd
}

func newExtendCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "extend <table> <address>...",
		Short: "Append addresses to a table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			auth, err := parseKeyArg("--authority", authority)
			if err != nil {
				return err
			}
			addrs, err := solana.ParsePubkeys(args[1:])
			if err != nil {
				return err
			}
			return a.mutate(cmd, func(ctx context.Context, svc *lutservice.Service) (*lut.Table, error) {
				return svc.Extend(ctx, key, auth, addrs)
			})
		},
	}
	authorityFlag(cmd, &authority)
	return cmd
}

// lifecycleCmd builds the freeze and deactivate commands, which differ
// only in the transition they apply.
func lifecycleCmd(a *app, use, short string, op func(svc *lutservice.Service, ctx context.Context, key, auth solana.Pubkey) (*lut.Table, error)) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   use + " <table>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			auth, err := parseKeyArg("--authority", authority)
			if err != nil {
				return err
			}
			return a.mutate(cmd, func(ctx context.Context, svc *lutservice.Service) (*lut.Table, error) {
				return op(svc, ctx, key, auth)
			})
		},
	}
	authorityFlag(cmd, &authority)
	return cmd
}

func newFreezeCmd(a *app) *cobra.Command {
	return lifecycleCmd(a, "freeze", "Freeze a table so its contents can never change", (*lutservice.Service).Freeze)
}

func newDeactivateCmd(a *app) *cobra.Command {
	return lifecycleCmd(a, "deactivate", "Deactivate a table, starting its close grace period", (*lutservice.Service).Deactivate)
}

func newCloseCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "close <table>",
		Short: "Remove a deactivated table once its grace period has passed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			auth, err := parseKeyArg("--authority", authority)
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
			if err := svc.Close(ctx, key, auth); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"closed": key})
		},
	}
	authorityFlag(cmd, &authority)
	return cmd
}

func (a *app) mutate(cmd *cobra.Command, apply func(context.Context, *lutservice.Service) (*lut.Table, error)) error {
	svc, closeFn, err := a.service(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := a.context(cmd)
	defer cancel()
	t, err := apply(ctx, svc)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.New("no table returned")
	}
	return printJSON(cmd.OutOrStdout(), t)
}
