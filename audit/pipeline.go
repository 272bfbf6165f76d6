package audit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mwc.dev/supplyverifier/commit"
)

// sumParallel folds decode(item) over every item that feed emits. feed runs
// in its own goroutine and hands batches to workers; each worker owns one
// partial sum and the partials are combined once after all workers finish.
// The result does not depend on batch boundaries, worker count or scheduling
// because the group operation is associative and commutative.
//
// The first error from feed or any worker cancels the rest and is returned.
func sumParallel[P, T any](
	ctx context.Context,
	g commit.Group[P],
	workers int,
	feed func(ctx context.Context, emit func([]T) error) error,
	decode func(T) (P, error),
) (P, uint64, error) {
	eg, ctx := errgroup.WithContext(ctx)
	batches := make(chan []T, workers)

	eg.Go(func() error {
		defer close(batches)
		return feed(ctx, func(batch []T) error {
			select {
			case batches <- batch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	partials := make([]P, workers)
	counts := make([]uint64, workers)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			acc := g.Identity()
			for batch := range batches {
				if err := ctx.Err(); err != nil {
					return err
				}
				for _, it := range batch {
					p, err := decode(it)
					if err != nil {
						return err
					}
					acc = g.Add(acc, p)
				}
				counts[w] += uint64(len(batch))
			}
			partials[w] = acc
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		var zero P
		return zero, 0, err
	}
	var n uint64
	for _, c := range counts {
		n += c
	}
	return commit.Sum(g, partials...), n, nil
}
