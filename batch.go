package bvh

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// NearestResult is one answer of QueryNearestBatch.
type NearestResult struct {
	Range Range
	Found bool
}

// QueryRangeBatch runs QueryRange for each box concurrently, bounded by
// WithConcurrency. results[i] belongs to boxes[i]. The first failure, or the
// cancellation of ctx, aborts the batch.
func (b *Index[T]) QueryRangeBatch(ctx context.Context, boxes []AABB) ([][]Range, error) {
	results := make([][]Range, len(boxes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.concurrency)

	for i, box := range boxes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ranges, err := b.QueryRange(box)
			if err != nil {
				return errors.Wrapf(err, "box %d", i)
			}
			results[i] = ranges
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// QueryNearestBatch runs QueryNearest for each point concurrently, bounded by
// WithConcurrency. results[i] belongs to points[i].
func (b *Index[T]) QueryNearestBatch(ctx context.Context, points []Point) ([]NearestResult, error) {
	results := make([]NearestResult, len(points))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.concurrency)

	for i, p := range points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, found, err := b.QueryNearest(p)
			if err != nil {
				return errors.Wrapf(err, "point %d", i)
			}
			results[i] = NearestResult{Range: r, Found: found}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
