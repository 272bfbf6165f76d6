package audit

import (
	"context"
	"fmt"
	"iter"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
)

// OutputSum is the homomorphic sum of an unspent output set.
type OutputSum[P any] struct {
	Sum   P
	Count uint64
}

// AggregateOutputs adds up every commitment in outputs. A commitment that
// does not decode aborts the sum with an INVALID_COMMITMENT error naming the
// output.
func AggregateOutputs[P any](ctx context.Context, g commit.Group[P], outputs iter.Seq2[consensus.Output, error], opts Options) (OutputSum[P], error) {
	opts = opts.withDefaults()
	feed := func(ctx context.Context, emit func([]consensus.Output) error) error {
		batch := make([]consensus.Output, 0, opts.BatchSize)
		for o, err := range outputs {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			batch = append(batch, o)
			if len(batch) == opts.BatchSize {
				if err := emit(batch); err != nil {
					return err
				}
				batch = make([]consensus.Output, 0, opts.BatchSize)
			}
		}
		if len(batch) > 0 {
			return emit(batch)
		}
		return nil
	}
	decode := func(o consensus.Output) (P, error) {
		p, err := g.Decode(o.Commitment)
		if err != nil {
			return p, consensus.InvalidCommitment(outputEntity(o), o.Height, err)
		}
		return p, nil
	}

	sum, n, err := sumParallel(ctx, g, opts.Workers, feed, decode)
	if err != nil {
		return OutputSum[P]{}, err
	}
	opts.Log.Debugw("outputs aggregated", "count", n)
	return OutputSum[P]{Sum: sum, Count: n}, nil
}

func outputEntity(o consensus.Output) string {
	return fmt.Sprintf("output %s (%s, height %d)", o.Commitment, o.Features, o.Height)
}
