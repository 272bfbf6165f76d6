// Command gen-devchain writes a synthetic devnet chain whose supply balances,
// optionally pruned or tampered with, for exercising mwc-supply-verifier
// without a running node.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/commit/toygroup"
	"mwc.dev/supplyverifier/consensus"
	"mwc.dev/supplyverifier/logger"
	"mwc.dev/supplyverifier/node"
	"mwc.dev/supplyverifier/node/devchain"
	"mwc.dev/supplyverifier/node/store"
)

type options struct {
	chainPath   string
	network     string
	group       string
	blocks      int
	txsPerBlock int
	seed        uint64
	pruneBelow  uint64
	tamper      bool
	logLevel    string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	o := options{
		network:     consensus.Devnet.Name,
		group:       commit.Secp256k1{}.Name(),
		blocks:      10,
		txsPerBlock: 2,
		seed:        1,
		logLevel:    "info",
	}
	cmd := &cobra.Command{
		Use:           "gen-devchain",
		Short:         "Write a synthetic balanced chain store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return generate(stdout, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&o.chainPath, "chain-path", "", "chain directory to create (must not exist)")
	fs.StringVar(&o.network, "network", o.network, "network whose reward schedule the chain follows")
	fs.StringVar(&o.group, "group", o.group, "commitment group: secp256k1|"+toygroup.Group{}.Name())
	fs.IntVar(&o.blocks, "blocks", o.blocks, "number of blocks including genesis")
	fs.IntVar(&o.txsPerBlock, "txs-per-block", o.txsPerBlock, "transactions per block after genesis")
	fs.Uint64Var(&o.seed, "seed", o.seed, "random seed")
	fs.Uint64Var(&o.pruneBelow, "prune-below", 0, "drop block bodies below this height")
	fs.BoolVar(&o.tamper, "tamper", false, "flip one bit of one unspent output")
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "log level: debug|info|warn|error")
	_ = cmd.MarkFlagRequired("chain-path")
	return cmd
}

func generate(stdout io.Writer, o options) (err error) {
	if o.blocks <= 0 {
		return errors.New("blocks must be > 0")
	}
	if o.txsPerBlock < 0 {
		return errors.New("txs-per-block must be >= 0")
	}
	params, err := consensus.ParamsByName(o.network)
	if err != nil {
		return err
	}
	chainPath, err := node.ExpandPath(o.chainPath)
	if err != nil {
		return err
	}
	log, err := logger.New("GEN-DEVCHAIN", o.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := store.Create(chainPath, store.Manifest{Network: params.Name, Group: o.group})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	switch o.group {
	case commit.Secp256k1{}.Name():
		err = populate[secp.JacobianPoint](log, commit.Secp256k1{}, params, db, o)
	case toygroup.Group{}.Name():
		err = populate[fr.Element](log, toygroup.Group{}, params, db, o)
	default:
		err = fmt.Errorf("unknown commitment group %q", o.group)
	}
	if err != nil {
		return err
	}

	tip, _, err := db.Tip()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "wrote %d blocks to %s (tip %d, %x)\n", o.blocks, chainPath, tip.Height, tip.Hash())
	return err
}

func populate[P any](log *zap.SugaredLogger, g commit.Group[P], params consensus.Params, db *store.DB, o options) error {
	b := devchain.NewBuilder(g, params.Schedule, db, o.seed)
	for i := 0; i < o.blocks; i++ {
		blk, err := b.Next(o.txsPerBlock)
		if err != nil {
			return err
		}
		log.Debugw("block", "height", blk.Header.Height, "kernels", len(blk.Kernels))
	}
	log.Infow("chain written", "blocks", o.blocks, "group", g.Name(), "network", params.Name)

	if o.pruneBelow > 0 {
		n, err := db.PruneBelow(o.pruneBelow)
		if err != nil {
			return err
		}
		log.Infow("pruned", "below", o.pruneBelow, "bodies", n)
	}
	if o.tamper {
		before, after, err := devchain.Tamper(g, db)
		if err != nil {
			return err
		}
		log.Infow("tampered", "before", before, "after", after)
	}
	return nil
}
