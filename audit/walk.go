package audit

import (
	"context"
	"fmt"
	"iter"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
)

// KernelSum is what a walk of the block history accumulates.
type KernelSum[P any] struct {
	Excess  P
	Offset  commit.Scalar
	Kernels uint64
	Blocks  uint64
}

type kernelRef struct {
	height uint64
	index  int
	excess commit.Commitment
}

// WalkKernels consumes blocks from tip down to genesis. Kernel excesses are
// summed by workers; block offsets are summed in order by the feeding
// goroutine. Every step must lower the height by exactly one and the walk
// must reach height 0, otherwise the first height that could not be read is
// reported as INCOMPLETE_HISTORY.
//
// The accumulated offset must equal the tip's TotalKernelOffset.
func WalkKernels[P any](ctx context.Context, g commit.Group[P], tip consensus.BlockHeader, blocks iter.Seq2[consensus.Block, error], opts Options) (KernelSum[P], error) {
	opts = opts.withDefaults()
	var (
		offset     commit.Scalar
		nblocks    uint64
		reachedGen bool
	)
	feed := func(ctx context.Context, emit func([]kernelRef) error) error {
		expect := tip.Height
		batch := make([]kernelRef, 0, opts.BatchSize)
		for b, err := range blocks {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			h := b.Header.Height
			if reachedGen {
				return fmt.Errorf("walk: block at height %d after genesis", h)
			}
			if h != expect {
				return consensus.IncompleteHistory(expect, fmt.Sprintf("walk reached height %d", h))
			}
			if offset, err = g.AddScalars(offset, b.Offset); err != nil {
				return consensus.InvalidOffset(h, err)
			}
			for i, k := range b.Kernels {
				batch = append(batch, kernelRef{height: h, index: i, excess: k.Excess})
				if len(batch) == opts.BatchSize {
					if err := emit(batch); err != nil {
						return err
					}
					batch = make([]kernelRef, 0, opts.BatchSize)
				}
			}
			nblocks++
			if nblocks%progressEvery == 0 {
				opts.Log.Infow("walking kernels", "height", h, "blocks", nblocks)
			}
			if h == 0 {
				reachedGen = true
			} else {
				expect = h - 1
			}
		}
		if !reachedGen {
			return consensus.IncompleteHistory(expect, "history ends before genesis")
		}
		if len(batch) > 0 {
			return emit(batch)
		}
		return nil
	}
	decode := func(k kernelRef) (P, error) {
		p, err := g.Decode(k.excess)
		if err != nil {
			return p, consensus.InvalidCommitment(kernelEntity(k), k.height, err)
		}
		return p, nil
	}

	sum, n, err := sumParallel(ctx, g, opts.Workers, feed, decode)
	if err != nil {
		return KernelSum[P]{}, err
	}
	if offset != tip.TotalKernelOffset {
		return KernelSum[P]{}, consensus.OffsetMismatch(tip.Height,
			fmt.Sprintf("block offsets sum to %s, tip header carries %s", offset, tip.TotalKernelOffset))
	}
	opts.Log.Debugw("kernels walked", "blocks", nblocks, "kernels", n)
	return KernelSum[P]{Excess: sum, Offset: offset, Kernels: n, Blocks: nblocks}, nil
}

func kernelEntity(k kernelRef) string {
	return fmt.Sprintf("kernel %d at height %d (%s)", k.index, k.height, k.excess)
}
