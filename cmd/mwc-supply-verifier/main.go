// Command mwc-supply-verifier checks that the unspent outputs of an MWC chain
// commit to exactly the coins issued by the reward schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mwc.dev/supplyverifier/audit"
	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/commit/toygroup"
	"mwc.dev/supplyverifier/consensus"
	"mwc.dev/supplyverifier/logger"
	"mwc.dev/supplyverifier/node"
	"mwc.dev/supplyverifier/node/store"
)

// build is the version of this program, set with -ldflags at release time.
var build = "develop"

const (
	exitValid      = 0
	exitMismatch   = 1
	exitOperation  = 2
	exitIncomplete = 3
	exitInvalid    = 4
)

var errInvalidConfig = errors.New("invalid config")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil && !errors.Is(err, consensus.ErrEquationMismatch) {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return exitValid
	}
	if errors.Is(err, consensus.ErrEquationMismatch) {
		return exitMismatch
	}
	switch consensus.CodeOf(err) {
	case consensus.SUPPLY_ERR_INCOMPLETE_HISTORY:
		return exitIncomplete
	case consensus.SUPPLY_ERR_INVALID_COMMITMENT, consensus.SUPPLY_ERR_INVALID_OFFSET, consensus.SUPPLY_ERR_OFFSET_MISMATCH:
		return exitInvalid
	default:
		return exitOperation
	}
}

func newRootCmd() *cobra.Command {
	cfg := node.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "mwc-supply-verifier",
		Short:         "Verify the circulating supply of an MWC chain",
		Long:          "Sums the unspent output set and every kernel of a chain store pinned at its tip and checks\nΣUTXO == Σkernel excess + offset·G + reward·H.",
		Version:       build,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return verify(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.ChainPath, "chain-path", cfg.ChainPath, "chain data directory (default per network, e.g. ~/.mwc/main/chain_data)")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "network: "+strings.Join(consensus.NetworkNames(), "|"))
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "summing goroutines per phase")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "commitments per work batch")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	return cmd
}

func verify(ctx context.Context, stdout io.Writer, cfg node.Config) (err error) {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	params, err := consensus.ParamsByName(cfg.Network)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	chainPath, err := node.ResolveChainPath(cfg, params)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	log, err := logger.New("MWC-SUPPLY", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("startup", "version", build, "network", params.Name, "chain_path", chainPath)

	db, err := store.Open(chainPath, store.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	m := db.Manifest()
	if m.Network != "" && m.Network != params.Name {
		return fmt.Errorf("%w: chain at %s is %s, not %s", errInvalidConfig, chainPath, m.Network, params.Name)
	}

	snap, err := db.Snapshot()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, snap.Close()) }()

	opts := audit.Options{Workers: cfg.Workers, BatchSize: cfg.BatchSize, Log: log}
	var report *audit.Report
	switch m.Group {
	case "", commit.Secp256k1{}.Name():
		report, err = audit.Run[secp.JacobianPoint](ctx, commit.Secp256k1{}, snap, params.Schedule, opts)
	case toygroup.Group{}.Name():
		report, err = audit.Run[fr.Element](ctx, toygroup.Group{}, snap, params.Schedule, opts)
	default:
		return consensus.StoreUnavailable(chainPath, fmt.Errorf("unknown commitment group %q", m.Group))
	}
	if err != nil {
		logFailure(log, err)
		return err
	}

	if err := audit.WriteReport(stdout, report, params); err != nil {
		return err
	}
	if !report.Verification.Balanced {
		log.Warnw("supply equation does not hold", "height", report.PinnedHeight, "lhs", report.Verification.LHS, "rhs", report.Verification.RHS)
		return consensus.ErrEquationMismatch
	}
	return nil
}

func logFailure(log *zap.SugaredLogger, err error) {
	var se *consensus.SupplyError
	if errors.As(err, &se) {
		log.Errorw("audit failed", "code", se.Code, "height", se.Height, "entity", se.Entity, "ERROR", err)
		return
	}
	log.Errorw("audit failed", "ERROR", err)
}
