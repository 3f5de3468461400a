package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

func newDeriveCmd(a *app) *cobra.Command {
	var (
		authority       string
		user            string
		registryProgram string
		seed            uint64
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a table address, or a user's table pointer with --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := a.params()
			if err != nil {
				return err
			}

			if user != "" {
				u, err := parseKeyArg("--user", user)
				if err != nil {
					return err
				}
				program := p.RegistryProgramID
				if registryProgram != "" {
					if program, err = parseKeyArg("--registry-program-id", registryProgram); err != nil {
						return err
					}
				}
				if program.IsZero() {
					return errors.New("registry program id required (--registry-program-id or deployment registry_program_id)")
				}
				pointer, bump, err := lut.DeriveUserTablePointer(program, u)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"pointer":    pointer,
					"bump":       bump,
					"program_id": program,
				})
			}

			if authority == "" {
				return errors.New("--authority or --user is required")
			}
			auth, err := parseKeyArg("--authority", authority)
			if err != nil {
				return err
			}
			table, bump, err := lut.DeriveTableAddress(p.LookupTableProgramID, auth, seed)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"table":      table,
				"bump":       bump,
				"seed":       seed,
				"program_id": p.LookupTableProgramID,
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "Table authority")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Derivation seed slot")
	cmd.Flags().StringVar(&user, "user", "", "Derive the per-user table pointer for this signer")
	cmd.Flags().StringVar(&registryProgram, "registry-program-id", "", "Program id that owns user table pointers")
	return cmd
}

// nativeSummary is the on-chain view of a table as the native program
// stores it.
type nativeSummary struct {
	DeactivationSlot           uint64         `json:"deactivation_slot"`
	LastExtendedSlot           uint64         `json:"last_extended_slot"`
	LastExtendedSlotStartIndex uint8          `json:"last_extended_slot_start_index"`
	Authority                  *solana.Pubkey `json:"authority"`
	Active                     bool           `json:"active"`
}

func summarize(s solana.AddressLookupTableState) nativeSummary {
	return nativeSummary{
		DeactivationSlot:           s.DeactivationSlot,
		LastExtendedSlot:           s.LastExtendedSlot,
		LastExtendedSlotStartIndex: s.LastExtendedSlotStartIndex,
		Authority:                  s.Authority,
		Active:                     s.IsActive(),
	}
}
