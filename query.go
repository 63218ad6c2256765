package bvh

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
)

// QueryRange returns the payload ranges of every leaf whose point lies inside box.
//
// Ranges are in ascending order, and ranges that touch are merged, so the
// result is disjoint and non-adjacent. A query that matches nothing returns an
// empty slice. The only possible error is ErrCapacityExceeded.
func (b *Index[T]) QueryRange(box AABB) ([]Range, error) {
	start := time.Now()
	var out []Range
	err := b.visitLeaves(box, func(ordinal int) {
		out = appendMerged(out, b.LeafRange(ordinal))
	})
	if err != nil {
		out = nil
		b.opts.logger.LogQueryFailure("range", err)
	}
	b.opts.metrics.RecordRangeQuery(len(out), time.Since(start), err)
	return out, err
}

// QueryRangeSlices is QueryRange resolved to payload slices.
func (b *Index[T]) QueryRangeSlices(box AABB) ([][]T, error) {
	ranges, err := b.QueryRange(box)
	if err != nil {
		return nil, err
	}
	slices := make([][]T, len(ranges))
	for i, r := range ranges {
		slices[i] = b.Slice(r)
	}
	return slices, nil
}

// QueryLeaves returns the ordinals of every leaf whose point lies inside box.
// The bitmaps of several queries can be combined with roaring's set operations
// and turned back into payload ranges with RangesOf.
func (b *Index[T]) QueryLeaves(box AABB) (*roaring.Bitmap, error) {
	leaves := roaring.New()
	err := b.visitLeaves(box, func(ordinal int) {
		leaves.Add(uint32(ordinal))
	})
	if err != nil {
		b.opts.logger.LogQueryFailure("leaves", err)
		return nil, err
	}
	return leaves, nil
}

// RangesOf returns the merged payload ranges of a set of leaf ordinals.
func (b *Index[T]) RangesOf(leaves *roaring.Bitmap) []Range {
	var out []Range
	it := leaves.Iterator()
	for it.HasNext() {
		ordinal := int(it.Next())
		if ordinal >= b.leafCount {
			break
		}
		out = appendMerged(out, b.LeafRange(ordinal))
	}
	return out
}

// appendMerged appends r, extending the last range instead when the two touch.
// Leaves are visited in the order their payloads were laid out, so contiguous
// hits collapse into one range.
func appendMerged(out []Range, r Range) []Range {
	if r.Start == r.End {
		return out
	}
	if n := len(out); n > 0 && out[n-1].End == r.Start {
		out[n-1].End = r.End
		return out
	}
	return append(out, r)
}

// visitLeaves calls fn with the ordinal of every leaf inside box, in ascending order.
func (b *Index[T]) visitLeaves(box AABB, fn func(ordinal int)) error {
	if len(b.nodes) == 0 {
		return nil
	}

	stack := make([]int, 0, 32)
	stack = append(stack, RootIndex)

	for len(stack) != 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := b.nodes[i]
		switch n.Kind() {
		case KindInternal:
			nodeBox, _ := n.Internal()
			if !nodeBox.Intersects(box) {
				continue
			}
			if limit := b.opts.scratchLimit; limit > 0 && len(stack)+2 > limit {
				return errors.Wrapf(ErrCapacityExceeded, "range stack limit %d", limit)
			}
			// right first, so that the left subtree is popped first and leaves come out in payload order
			stack = append(stack, RightChild(i), LeftChild(i))
		case KindLeaf:
			p, ptr, _ := n.Leaf()
			if box.ContainsPoint(p) {
				fn(int(ptr))
			}
		}
	}
	return nil
}
