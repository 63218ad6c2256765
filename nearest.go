package bvh

import (
	"time"

	"github.com/pkg/errors"
)

// QueryNearest returns the payload range of the leaf closest to p.
// found is false only for an empty index.
//
// When several leaves are equally close, the one earliest in payload order wins.
func (b *Index[T]) QueryNearest(p Point) (r Range, found bool, err error) {
	start := time.Now()
	ordinal, found, err := b.nearestLeaf(p)
	if err != nil {
		b.opts.logger.LogQueryFailure("nearest", err)
	} else if found {
		r = b.LeafRange(ordinal)
	}
	b.opts.metrics.RecordNearestQuery(found, time.Since(start), err)
	return r, found, err
}

// QueryNearestSlice is QueryNearest resolved to a payload slice.
func (b *Index[T]) QueryNearestSlice(p Point) ([]T, bool, error) {
	r, found, err := b.QueryNearest(p)
	if err != nil || !found {
		return nil, found, err
	}
	return b.Slice(r), true, nil
}

// nearestLeaf is a best-first search. Candidates are popped in ascending order of
// their smallest possible distance to p; upper tracks the smallest distance that
// is known to be achievable, and anything that cannot beat it is dropped.
// Leaves enter the queue with their exact distance, so the first leaf popped is
// the nearest one.
func (b *Index[T]) nearestLeaf(p Point) (int, bool, error) {
	if len(b.nodes) == 0 {
		return 0, false, nil
	}

	root := b.nodes[RootIndex]
	if _, ptr, ok := root.Leaf(); ok {
		return int(ptr), true, nil
	}
	rootBox, ok := root.Internal()
	if !ok {
		return 0, false, nil
	}

	lo, upper := rootBox.MinMaxSquaredDistance(p)
	q := newCandidateQueue(32)
	q.push(candidate{dist: lo, slot: RootIndex})

	for q.len() != 0 {
		c := q.pop()
		if c.dist > upper {
			// upper shrank after c was queued
			continue
		}
		if c.leaf {
			_, ptr, _ := b.nodes[c.slot].Leaf()
			return int(ptr), true, nil
		}

		for _, child := range [2]int{LeftChild(c.slot), RightChild(c.slot)} {
			n := b.nodes[child]
			var next candidate
			switch n.Kind() {
			case KindLeaf:
				lp, _, _ := n.Leaf()
				d := lp.SquaredDistance(p)
				if d > upper {
					continue
				}
				upper = d
				next = candidate{dist: d, slot: child, leaf: true}
			case KindInternal:
				box, _ := n.Internal()
				near, far := box.MinMaxSquaredDistance(p)
				if near > upper {
					continue
				}
				upper = min(upper, far)
				next = candidate{dist: near, slot: child}
			default:
				continue
			}
			if limit := b.opts.scratchLimit; limit > 0 && q.len() >= limit {
				return 0, false, errors.Wrapf(ErrCapacityExceeded, "nearest queue limit %d", limit)
			}
			q.push(next)
		}
	}
	return 0, false, nil
}

type candidate struct {
	dist uint64
	slot int
	leaf bool
}

// before orders candidates by distance. On equal distance internal nodes come
// first, so every leaf at that distance is queued before any of them is
// returned, and then the lowest slot (earliest payload) wins.
func (c candidate) before(o candidate) bool {
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	if c.leaf != o.leaf {
		return !c.leaf
	}
	return c.slot < o.slot
}

// candidateQueue is a binary min-heap of candidates with value storage.
type candidateQueue struct {
	items []candidate
}

func newCandidateQueue(capacity int) *candidateQueue {
	return &candidateQueue{items: make([]candidate, 0, capacity)}
}

func (q *candidateQueue) len() int { return len(q.items) }

func (q *candidateQueue) push(c candidate) {
	q.items = append(q.items, c)
	q.siftUp(len(q.items) - 1)
}

// pop removes and returns the smallest candidate. The queue must not be empty.
func (q *candidateQueue) pop() candidate {
	n := len(q.items) - 1
	root := q.items[0]
	q.items[0] = q.items[n]
	q.items = q.items[:n]
	if n > 0 {
		q.siftDown(0)
	}
	return root
}

func (q *candidateQueue) siftUp(i int) {
	item := q.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !item.before(q.items[parent]) {
			break
		}
		q.items[i] = q.items[parent]
		i = parent
	}
	q.items[i] = item
}

func (q *candidateQueue) siftDown(i int) {
	n := len(q.items)
	item := q.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && q.items[right].before(q.items[child]) {
			child = right
		}
		if !q.items[child].before(item) {
			break
		}
		q.items[i] = q.items[child]
		i = child
	}
	q.items[i] = item
}
