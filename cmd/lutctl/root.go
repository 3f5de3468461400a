package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/juno-luts/internal/lutservice"
	"github.com/Abdullah1738/juno-luts/offchain/deployments"
	"github.com/Abdullah1738/juno-luts/offchain/lutstore"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
	"github.com/Abdullah1738/juno-luts/offchain/solanarpc"
)

const defaultDB = "luts.db"

// app holds the persistent flags shared by every subcommand.
type app struct {
	deploymentsPath string
	deploymentName  string
	db              string
	rpcURL          string
	programID       string
	slot            uint64
	cooldown        uint64
	grace           uint64
	timeout         time.Duration
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "lutctl",
		Short:         "Manage address lookup tables in a local registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `lutctl creates, extends, freezes, deactivates and closes address lookup
tables kept in a local registry database, and inspects tables on chain.

Environment:
  LUT_DEPLOYMENTS, LUT_DEPLOYMENT, LUT_DB, SOLANA_RPC_URL, SOLANA_KEYPAIR`,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.deploymentsPath, "deployments", envOr("LUT_DEPLOYMENTS", "deployments.json"), "Path to the deployments registry (json or yaml)")
	pf.StringVar(&a.deploymentName, "deployment", envOr("LUT_DEPLOYMENT", ""), "Deployment name (optional)")
	pf.StringVar(&a.db, "db", envOr("LUT_DB", ""), "Registry database path, or :memory:")
	pf.StringVar(&a.rpcURL, "rpc-url", "", "Solana RPC URL (default: deployment rpc_url or SOLANA_RPC_URL)")
	pf.StringVar(&a.programID, "program-id", "", "Program id that owns derived table addresses")
	pf.Uint64Var(&a.slot, "slot", 0, "Use this slot instead of asking the cluster")
	pf.Uint64Var(&a.cooldown, "cooldown", 0, "Cooldown slots (default: deployment or 1)")
	pf.Uint64Var(&a.grace, "grace", 0, "Deactivation grace slots before close (default: deployment or 513)")
	pf.DurationVar(&a.timeout, "timeout", 60*time.Second, "Timeout for each command")

	root.AddCommand(
		newDeriveCmd(a),
		newCreateCmd(a),
		newExtendCmd(a),
		newFreezeCmd(a),
		newDeactivateCmd(a),
		newCloseCmd(a),
		newListCmd(a),
		newResolveCmd(a),
		newShowCmd(a),
		newReadyCmd(a),
		newFetchCmd(a),
		newCompileCmd(a),
		newNativeCmd(a),
	)
	return root
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// deployment returns the selected deployment, or a zero one when none is
// named.
func (a *app) deployment() (deployments.Deployment, error) {
	if strings.TrimSpace(a.deploymentName) == "" {
		return deployments.Deployment{}, nil
	}
	reg, err := deployments.Load(a.deploymentsPath)
	if err != nil {
		return deployments.Deployment{}, err
	}
	return reg.FindByName(a.deploymentName)
}

func (a *app) params() (deployments.Params, deployments.Deployment, error) {
	d, err := a.deployment()
	if err != nil {
		return deployments.Params{}, d, err
	}
	p, err := d.Params()
	if err != nil {
		return deployments.Params{}, d, err
	}
	if s := strings.TrimSpace(a.programID); s != "" {
		pk, err := solana.ParsePubkey(s)
		if err != nil {
			return deployments.Params{}, d, fmt.Errorf("--program-id: %w", err)
		}
		p.LookupTableProgramID = pk
	}
	if a.cooldown != 0 {
		p.Cooldown = a.cooldown
	}
	if a.grace != 0 {
		p.Grace = a.grace
	}
	return p, d, nil
}

func (a *app) rpcClient(d deployments.Deployment) (*solanarpc.Client, error) {
	if raw := strings.TrimSpace(a.rpcURL); raw != "" {
		return solanarpc.New(raw, nil), nil
	}
	if raw := strings.TrimSpace(d.RPCURL); raw != "" {
		return solanarpc.New(raw, nil), nil
	}
	return solanarpc.ClientFromEnv()
}

func (a *app) slotSource(cmd *cobra.Command, p deployments.Params, d deployments.Deployment) (lutservice.SlotSource, error) {
	if cmd.Flags().Changed("slot") {
		return lutservice.StaticSlot(a.slot), nil
	}
	if !p.Genesis.IsZero() {
		return lutservice.Ticker{Genesis: p.Genesis, SlotDuration: p.SlotDuration}, nil
	}
	rpc, err := a.rpcClient(d)
	if err != nil {
		return nil, errors.New("no slot source: pass --slot, set genesis_unix, or configure an RPC url")
	}
	return rpc, nil
}

func openStore(path string) (lutstore.Store, error) {
	if path == ":memory:" {
		return lutstore.NewMemStore(), nil
	}
	return lutstore.OpenSQLite(path)
}

// service opens the registry database and wires a Service over it. The
// returned func closes the database.
func (a *app) service(cmd *cobra.Command) (*lutservice.Service, func(), error) {
	p, d, err := a.params()
	if err != nil {
		return nil, nil, err
	}
	slots, err := a.slotSource(cmd, p, d)
	if err != nil {
		return nil, nil, err
	}
	path := a.db
	if path == "" {
		path = d.Database
	}
	if path == "" {
		path = defaultDB
	}
	store, err := openStore(path)
	if err != nil {
		return nil, nil, err
	}
	svc := lutservice.New(store, slots, lutservice.Config{
		ProgramID: p.LookupTableProgramID,
		Cooldown:  p.Cooldown,
		Grace:     p.Grace,
	})
	return svc, func() { _ = store.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseKeyArg(name, s string) (solana.Pubkey, error) {
	pk, err := solana.ParsePubkey(s)
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("%s: %w", name, err)
	}
	return pk, nil
}

// authorityFlag registers the --authority flag every mutating command
// takes.
func authorityFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "authority", "", "Table authority (signer)")
	_ = cmd.MarkFlagRequired("authority")
}
