// Package audit checks that the unspent outputs of a pinned chain commit to
// exactly the coins the reward schedule has issued.
package audit

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
)

// Source is a consistent view of a chain pinned at one height. Each sequence
// is consumed once. *store.Snapshot implements it.
type Source interface {
	Tip() consensus.BlockHeader
	TipHash() [32]byte
	Outputs() iter.Seq2[consensus.Output, error]
	BlocksDescending() iter.Seq2[consensus.Block, error]
}

type Report struct {
	Group        string
	PinnedHeight uint64
	TipHash      [32]byte
	Outputs      uint64
	Kernels      uint64
	Blocks       uint64
	Reward       uint64
	Offset       commit.Scalar
	Verification Verification
	Elapsed      time.Duration
}

// Run audits src: the output set and the block history are summed
// concurrently, the reward is taken from schedule at the pinned height and
// the equation is checked once both sums are complete. The first failure of
// either side cancels the other.
func Run[P any](ctx context.Context, g commit.Group[P], src Source, schedule consensus.Schedule, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	start := time.Now()
	tip := src.Tip()

	reward, err := schedule.TotalReward(tip.Height)
	if err != nil {
		return nil, fmt.Errorf("reward: %w", err)
	}
	opts.Log.Infow("audit started",
		"group", g.Name(),
		"height", tip.Height,
		"workers", opts.Workers,
		"batch_size", opts.BatchSize,
	)

	var (
		outs    OutputSum[P]
		kernels KernelSum[P]
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		outs, err = AggregateOutputs(ctx, g, src.Outputs(), opts)
		if err == nil {
			opts.Log.Infow("outputs collected", "count", outs.Count, "height", tip.Height)
		}
		return err
	})
	eg.Go(func() error {
		var err error
		kernels, err = WalkKernels(ctx, g, tip, src.BlocksDescending(), opts)
		if err == nil {
			opts.Log.Infow("kernels collected", "count", kernels.Kernels, "blocks", kernels.Blocks)
		}
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	v, err := Verify(g, outs.Sum, kernels.Excess, kernels.Offset, reward)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Group:        g.Name(),
		PinnedHeight: tip.Height,
		TipHash:      src.TipHash(),
		Outputs:      outs.Count,
		Kernels:      kernels.Kernels,
		Blocks:       kernels.Blocks,
		Reward:       reward,
		Offset:       kernels.Offset,
		Verification: v,
		Elapsed:      time.Since(start),
	}
	opts.Log.Infow("audit finished", "balanced", v.Balanced, "elapsed", r.Elapsed)
	return r, nil
}
