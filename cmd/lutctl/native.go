package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
	"github.com/Abdullah1738/juno-luts/offchain/solanarpc"
)

// nativeOpts are the signing and submission flags shared by the native
// subcommands. The keypair signs as both table authority and fee payer.
type nativeOpts struct {
	keypair   string
	blockhash string
	send      bool
}

type nativeTx struct {
	Table       solana.Pubkey   `json:"table"`
	Instruction string          `json:"instruction"`
	Signers     []solana.Pubkey `json:"signers"`
	Size        int             `json:"size"`
	Transaction string          `json:"transaction"`
	Signature   string          `json:"signature,omitempty"`
}

func newNativeCmd(a *app) *cobra.Command {
	o := &nativeOpts{}
	cmd := &cobra.Command{
		Use:   "native",
		Short: "Build, sign and optionally send native lookup table program transactions",
		Long: `native builds transactions for the on-chain address lookup table program,
signed by --keypair as authority and fee payer. The signed transaction is
printed base64 encoded; --send submits it over RPC.`,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.keypair, "keypair", envOr("SOLANA_KEYPAIR", solana.DefaultKeypairPath()), "Solana CLI keypair file")
	pf.StringVar(&o.blockhash, "blockhash", "", "Recent blockhash (default: fetched over RPC)")
	pf.BoolVar(&o.send, "send", false, "Submit the signed transaction over RPC")

	cmd.AddCommand(
		newNativeCreateCmd(a, o),
		newNativeExtendCmd(a, o),
		newNativeTableCmd(a, o, "freeze", "Freeze a table on chain", solana.FreezeLookupTableInstruction),
		newNativeTableCmd(a, o, "deactivate", "Deactivate a table on chain", solana.DeactivateLookupTableInstruction),
		newNativeCloseCmd(a, o),
		newKeygenCmd(),
	)
	return cmd
}

func (o *nativeOpts) signer() (ed25519.PrivateKey, solana.Pubkey, error) {
	priv, pub, err := solana.LoadKeypair(o.keypair)
	if err != nil {
		return nil, solana.Pubkey{}, fmt.Errorf("--keypair: %w", err)
	}
	return priv, pub, nil
}

// rpc is only needed to fetch a blockhash, a seed slot or to send.
func (o *nativeOpts) rpc(a *app) (*solanarpc.Client, error) {
	_, d, err := a.params()
	if err != nil {
		return nil, err
	}
	return a.rpcClient(d)
}

func (o *nativeOpts) submit(cmd *cobra.Command, a *app, name string, table solana.Pubkey, ix solana.Instruction) error {
	priv, pub, err := o.signer()
	if err != nil {
		return err
	}
	ctx, cancel := a.context(cmd)
	defer cancel()

	var rpc *solanarpc.Client
	if o.blockhash == "" || o.send {
		if rpc, err = o.rpc(a); err != nil {
			return err
		}
	}

	var blockhash [32]byte
	if o.blockhash != "" {
		bh, err := parseKeyArg("--blockhash", o.blockhash)
		if err != nil {
			return err
		}
		blockhash = bh
	} else if blockhash, err = rpc.LatestBlockhash(ctx); err != nil {
		return err
	}

	tx, err := solana.BuildAndSignLegacyTransaction(blockhash, pub, map[solana.Pubkey]ed25519.PrivateKey{pub: priv}, []solana.Instruction{ix})
	if err != nil {
		return err
	}
	parsed, err := solana.ParseTransaction(tx)
	if err != nil {
		return fmt.Errorf("re-parse signed transaction: %w", err)
	}
	out := nativeTx{
		Table:       table,
		Instruction: name,
		Signers:     parsed.StaticKeys[:parsed.Header.NumRequiredSignatures],
		Size:        len(tx),
		Transaction: base64.StdEncoding.EncodeToString(tx),
	}
	if o.send {
		if out.Signature, err = rpc.SendTransaction(ctx, tx, false); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func newNativeCreateCmd(a *app, o *nativeOpts) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a table on chain, derived from the keypair and a recent slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pub, err := o.signer()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				rpc, err := o.rpc(a)
				if err != nil {
					return err
				}
				ctx, cancel := a.context(cmd)
				seed, err = rpc.Slot(ctx)
				cancel()
				if err != nil {
					return err
				}
			}
			ix, table, err := solana.CreateLookupTableInstruction(pub, pub, seed)
			if err != nil {
				return err
			}
			return o.submit(cmd, a, "create", table, ix)
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Recent slot used to derive the table (default: current slot over RPC)")
	return cmd
}

func newNativeExtendCmd(a *app, o *nativeOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "extend <table> <address>...",
		Short: "Append addresses to a table on chain",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			addrs, err := solana.ParsePubkeys(args[1:])
			if err != nil {
				return err
			}
			_, pub, err := o.signer()
			if err != nil {
				return err
			}
			return o.submit(cmd, a, "extend", table, solana.ExtendLookupTableInstruction(table, pub, pub, addrs))
		},
	}
}

func newNativeTableCmd(a *app, o *nativeOpts, use, short string, build func(table, authority solana.Pubkey) solana.Instruction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <table>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			_, pub, err := o.signer()
			if err != nil {
				return err
			}
			return o.submit(cmd, a, use, table, build(table, pub))
		},
	}
}

func newNativeCloseCmd(a *app, o *nativeOpts) *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "close <table>",
		Short: "Close a deactivated table on chain and reclaim its rent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseKeyArg("table", args[0])
			if err != nil {
				return err
			}
			_, pub, err := o.signer()
			if err != nil {
				return err
			}
			to := pub
			if recipient != "" {
				if to, err = parseKeyArg("--recipient", recipient); err != nil {
					return err
				}
			}
			return o.submit(cmd, a, "close", table, solana.CloseLookupTableInstruction(table, pub, to))
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "Account receiving the reclaimed rent (default: keypair)")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var (
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Write a new Solana CLI keypair file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(out) == "" {
				return errors.New("--out is required")
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", out)
			}
			_, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			if err := solana.WriteKeypair(out, priv); err != nil {
				return err
			}
			var pub solana.Pubkey
			copy(pub[:], priv.Public().(ed25519.PublicKey))
			return printJSON(cmd.OutOrStdout(), map[string]any{"pubkey": pub, "path": out})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Keypair file to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
