package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Abdullah1738/juno-luts/internal/httpapi"
	"github.com/Abdullah1738/juno-luts/internal/lutservice"
	"github.com/Abdullah1738/juno-luts/offchain/deployments"
	"github.com/Abdullah1738/juno-luts/offchain/lutstore"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
	"github.com/Abdullah1738/juno-luts/offchain/solanarpc"
)

const (
	defaultAddr = "127.0.0.1:8787"
	defaultDB   = "luts.db"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "lutd: serves an address lookup table registry over HTTP")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  lutd [--addr 127.0.0.1:8787] [--db luts.db] [--deployment <name>] [--deployments deployments.json]")
	fmt.Fprintln(w, "       [--rpc-url <url>] [--program-id <pubkey>] [--cooldown <slots>] [--grace <slots>] [--slot-duration 400ms] [--dev]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  LUTD_ADDR, LUT_DB, LUT_DEPLOYMENTS, LUT_DEPLOYMENT, SOLANA_RPC_URL")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without an RPC url the slot advances locally every --slot-duration, counted from the")
	fmt.Fprintln(w, "deployment genesis or from the first start recorded in the database.")
}

type config struct {
	addr            string
	db              string
	deploymentsPath string
	deploymentName  string
	rpcURL          string
	programID       string
	cooldown        uint64
	grace           uint64
	slotDuration    time.Duration
	dev             bool
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseFlags(argv []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("lutd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.addr, "addr", envOr("LUTD_ADDR", defaultAddr), "Listen address")
	fs.StringVar(&c.db, "db", envOr("LUT_DB", ""), "Registry database path, or :memory:")
	fs.StringVar(&c.deploymentsPath, "deployments", envOr("LUT_DEPLOYMENTS", "deployments.json"), "Path to the deployments registry")
	fs.StringVar(&c.deploymentName, "deployment", envOr("LUT_DEPLOYMENT", ""), "Deployment name (optional)")
	fs.StringVar(&c.rpcURL, "rpc-url", "", "Solana RPC URL used as the slot source")
	fs.StringVar(&c.programID, "program-id", "", "Program id that owns derived table addresses")
	fs.Uint64Var(&c.cooldown, "cooldown", 0, "Cooldown slots (default: deployment or 1)")
	fs.Uint64Var(&c.grace, "grace", 0, "Deactivation grace slots (default: deployment or 513)")
	fs.DurationVar(&c.slotDuration, "slot-duration", 0, "Local slot duration when no RPC url is set (default: deployment or 400ms)")
	fs.BoolVar(&c.dev, "dev", false, "Human-readable debug logging")

	if err := fs.Parse(argv); err != nil {
		return c, err
	}
	if len(fs.Args()) != 0 {
		return c, fmt.Errorf("unexpected args: %v", fs.Args())
	}
	return c, nil
}

func run(argv []string) error {
	if len(argv) > 0 && (argv[0] == "-h" || argv[0] == "--help" || argv[0] == "help") {
		usage(os.Stdout)
		return nil
	}
	c, err := parseFlags(argv)
	if err != nil {
		return err
	}

	log, err := newLogger(c.dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, c, log, ln)
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type daemon struct {
	svc   *lutservice.Service
	store lutstore.Store
}

func build(ctx context.Context, c config, log *zap.Logger, now func() time.Time) (*daemon, error) {
	var d deployments.Deployment
	if strings.TrimSpace(c.deploymentName) != "" {
		reg, err := deployments.Load(c.deploymentsPath)
		if err != nil {
			return nil, err
		}
		if d, err = reg.FindByName(c.deploymentName); err != nil {
			return nil, err
		}
	}
	p, err := d.Params()
	if err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(c.programID); s != "" {
		if p.LookupTableProgramID, err = solana.ParsePubkey(s); err != nil {
			return nil, fmt.Errorf("--program-id: %w", err)
		}
	}
	if c.cooldown != 0 {
		p.Cooldown = c.cooldown
	}
	if c.grace != 0 {
		p.Grace = c.grace
	}
	if c.slotDuration > 0 {
		p.SlotDuration = c.slotDuration
	}

	path := c.db
	if path == "" {
		path = d.Database
	}
	if path == "" {
		path = defaultDB
	}
	var store lutstore.Store
	if path == ":memory:" {
		store = lutstore.NewMemStore()
	} else if store, err = lutstore.OpenSQLite(path); err != nil {
		return nil, err
	}

	slots, err := slotSource(ctx, c, d, p, store, now)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("lookup table registry configured",
		zap.String("deployment", d.Name),
		zap.String("db", path),
		zap.Stringer("program_id", p.LookupTableProgramID),
		zap.Uint64("cooldown", p.Cooldown),
		zap.Uint64("grace", p.Grace),
	)
	svc := lutservice.New(store, slots, lutservice.Config{
		ProgramID: p.LookupTableProgramID,
		Cooldown:  p.Cooldown,
		Grace:     p.Grace,
	}, lutservice.WithLogger(log))
	return &daemon{svc: svc, store: store}, nil
}

// genesisAnchor names the stored start of the local slot clock.
const genesisAnchor = "genesis_unix_ms"

// slotSource prefers the cluster clock and falls back to a local ticker
// that starts at the deployment genesis. Without one, the first start of
// a database records its own genesis so slots keep counting up across
// restarts.
func slotSource(ctx context.Context, c config, d deployments.Deployment, p deployments.Params, store lutstore.Store, now func() time.Time) (lutservice.SlotSource, error) {
	for _, raw := range []string{c.rpcURL, d.RPCURL, os.Getenv("SOLANA_RPC_URL")} {
		if raw = strings.TrimSpace(raw); raw != "" {
			return solanarpc.New(raw, nil), nil
		}
	}
	genesis := p.Genesis
	if genesis.IsZero() {
		ms, err := store.Anchor(ctx, genesisAnchor, now().UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("anchor local slot clock: %w", err)
		}
		genesis = time.UnixMilli(ms)
	}
	return lutservice.Ticker{Genesis: genesis, SlotDuration: p.SlotDuration, Now: now}, nil
}

func serve(ctx context.Context, c config, log *zap.Logger, ln net.Listener) error {
	d, err := build(ctx, c, log, time.Now)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() { _ = d.store.Close() }()

	srv := &http.Server{
		Handler:           httpapi.New(d.svc, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
