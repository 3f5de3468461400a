package main

import (
	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/lut"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <table>",
		Short: "Fetch and decode a table from the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
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

			state, err := rpc.AddressLookupTable(ctx, key)
			if err != nil {
				return err
			}
			t, err := lut.FromNative(key, state)
			if err != nil {
				return err
			}
			slot, err := rpc.Slot(ctx)
			if err != nil {
				return err
			}
			v := lut.NewValidator(p.Cooldown)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"slot":      slot,
				"ready_len": v.ReadyLen(t, slot),
				"native":    summarize(state),
				"table":     t,
			})
		},
	}
}
