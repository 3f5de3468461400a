package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
	"github.com/Abdullah1738/juno-luts/offchain/solanafees"
)

type compileReport struct {
	LegacySize int `json:"legacy_size,omitempty"`
	// LegacyError is set when the accounts do not fit a legacy message.
	LegacyError string `json:"legacy_error,omitempty"`
	V0Size      int    `json:"v0_size"`
	StaticKeys  int    `json:"static_keys"`
	Loaded      int    `json:"loaded"`
	ReadyLen    int    `json:"ready_len"`

	// LoadedWritable and LoadedReadonly are the accounts the message's
	// table lookups resolve to, in load order.
	LoadedWritable []solana.Pubkey `json:"loaded_writable"`
	LoadedReadonly []solana.Pubkey `json:"loaded_readonly"`

	// Transaction is the signed v0 transaction when --keypair is given.
	Transaction string `json:"transaction,omitempty"`
	TxSize      int    `json:"tx_size,omitempty"`

	Fee solanafees.TxFeeEstimate `json:"fee"`
}

func newCompileCmd(a *app) *cobra.Command {
	var (
		payer    string
		keypair  string
		writable bool
		cuLimit  uint32
		cuPrice  uint64
	)
	cmd := &cobra.Command{
		Use:   "compile <table> [address...]",
		Short: "Compare legacy and v0 message sizes for an instruction using the table",
		Long: `compile builds one instruction that references the given addresses (all
table addresses when none are given) and reports the size of the message
with and without the part of the table usable at the current slot. The
message's lookups are then resolved back through the registry. With
--keypair the fee payer signs and the signed transaction is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			var (
				feePayer solana.Pubkey
				priv     ed25519.PrivateKey
			)
			switch {
			case keypair != "" && payer != "":
				return errors.New("--payer and --keypair are mutually exclusive")
			case keypair != "":
				if priv, feePayer, err = solana.LoadKeypair(keypair); err != nil {
					return err
				}
			default:
				if feePayer, err = parseKeyArg("--payer", payer); err != nil {
					return err
				}
			}
			accounts, err := solana.ParsePubkeys(args[1:])
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

			if len(accounts) == 0 {
				t, err := svc.Get(ctx, key)
				if err != nil {
					return err
				}
				accounts = t.Addresses
			}
			view, err := svc.View(ctx, key)
			if err != nil {
				return err
			}

			ix := solana.Instruction{ProgramID: solana.SystemProgramID}
			ix.Accounts = append(ix.Accounts, solana.AccountMeta{Pubkey: feePayer, IsSigner: true, IsWritable: true})
			for _, pk := range accounts {
				ix.Accounts = append(ix.Accounts, solana.AccountMeta{Pubkey: pk, IsWritable: writable})
			}
			ixs := []solana.Instruction{ix}

			var rep compileReport
			rep.ReadyLen = len(view.Addresses)
			if msg, _, _, err := solana.CompileLegacyMessage([32]byte{}, feePayer, ixs); err != nil {
				rep.LegacyError = err.Error()
			} else {
				rep.LegacySize = len(msg)
			}
			msg, static, header, err := solana.CompileV0Message([32]byte{}, feePayer, ixs, []solana.LookupTable{view})
			if err != nil {
				return err
			}
			if rep.Fee, err = solanafees.Estimate(uint64(header.NumRequiredSignatures), 0, cuLimit, cuPrice); err != nil {
				return err
			}
			rep.V0Size = len(msg)
			rep.StaticKeys = len(static)

			var parsed solana.ParsedMessage
			if priv != nil {
				tx, err := solana.BuildAndSignV0Transaction([32]byte{}, feePayer, map[solana.Pubkey]ed25519.PrivateKey{feePayer: priv}, ixs, []solana.LookupTable{view})
				if err != nil {
					return err
				}
				rep.Transaction = base64.StdEncoding.EncodeToString(tx)
				rep.TxSize = len(tx)
				parsed, err = solana.ParseTransaction(tx)
				if err != nil {
					return err
				}
			} else if parsed, err = solana.ParseMessage(msg); err != nil {
				return err
			}

			loaded, err := svc.LoadMessageAddresses(ctx, parsed.Lookups)
			if err != nil {
				return err
			}
			rep.LoadedWritable = loaded.Writable
			rep.LoadedReadonly = loaded.Readonly
			rep.Loaded = len(loaded.Writable) + len(loaded.Readonly)
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&payer, "payer", "", "Fee payer")
	cmd.Flags().StringVar(&keypair, "keypair", "", "Keypair file of the fee payer; signs the v0 transaction")
	cmd.Flags().BoolVar(&writable, "writable", false, "Reference the accounts as writable")
	cmd.Flags().Uint32Var(&cuLimit, "cu-limit", 0, "Compute unit limit for the priority fee estimate")
	cmd.Flags().Uint64Var(&cuPrice, "cu-price", 0, "Priority fee in micro-lamports per compute unit")
	return cmd
}
