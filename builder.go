package bvh

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Record is a point-tagged payload.
type Record[T any] interface {
	Point() Point
	Payload() []T
}

// Build creates an Index from records. Records at the same point are merged into
// one leaf whose payload is their payloads concatenated in input order.
// An empty input yields an empty Index.
func Build[T any, R Record[T]](records []R, opts ...Option) (*Index[T], error) {
	b := NewBuilder[T](opts...)
	b.Reserve(len(records))
	for _, r := range records {
		b.Add(r.Point(), r.Payload())
	}
	return b.Finish()
}

// Builder accumulates records for an Index.
type Builder[T any] struct {
	points   []Point
	payloads [][]T
	total    int
	opts     options
}

// NewBuilder creates an empty builder.
func NewBuilder[T any](opts ...Option) *Builder[T] {
	return &Builder[T]{
		opts: applyOptions(opts),
	}
}

// Reserve enough space for the given number of records
func (b *Builder[T]) Reserve(size int) {
	if size <= cap(b.points)-len(b.points) {
		return
	}
	points := make([]Point, len(b.points), len(b.points)+size)
	copy(points, b.points)
	payloads := make([][]T, len(b.payloads), len(b.payloads)+size)
	copy(payloads, b.payloads)
	b.points, b.payloads = points, payloads
}

// Add a new record, and return its index.
// The index of the record is zero based, and corresponds 1:1 with the insertion order.
// The payload is copied by Finish, so it must not be modified before then.
func (b *Builder[T]) Add(p Point, payload []T) int {
	index := len(b.points)
	b.points = append(b.points, p)
	b.payloads = append(b.payloads, payload)
	b.total += len(payload)
	return index
}

// Finish builds the index. The builder must not be reused afterwards.
func (b *Builder[T]) Finish() (*Index[T], error) {
	start := time.Now()
	idx, err := b.finish()
	elapsed := time.Since(start)

	leaves, payload, depth := 0, 0, 0
	if idx != nil {
		leaves, payload, depth = idx.leafCount, len(idx.data), idx.Depth()
	}
	b.opts.metrics.RecordBuild(len(b.points), leaves, elapsed, err)
	b.opts.logger.LogBuild(len(b.points), leaves, payload, depth, elapsed, err)
	return idx, err
}

func (b *Builder[T]) finish() (*Index[T], error) {
	idx := &Index[T]{
		id:   uuid.New(),
		opts: b.opts,
	}
	n := len(b.points)
	if n == 0 {
		return idx, nil
	}
	if uint64(b.total) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d units", b.total)
	}

	// sort records by their Hilbert value (for packing later)
	keys := make([]uint32, n)
	order := make([]int, n)
	for i, p := range b.points {
		keys[i] = hilbertKey(p)
		order[i] = i
	}
	sortByHilbert(keys, order, 0, n-1)

	// group records sharing a point into one leaf, appending payloads in sorted order
	data := make([]T, 0, max(b.opts.sizeHint, b.total))
	boundaries := make([]uint32, 0, n+1)
	leafPoints := make([]Point, 0, n)
	for k, rec := range order {
		p := b.points[rec]
		if k == 0 || p != leafPoints[len(leafPoints)-1] {
			boundaries = append(boundaries, uint32(len(data)))
			leafPoints = append(leafPoints, p)
		}
		data = append(data, b.payloads[rec]...)
	}
	boundaries = append(boundaries, uint32(len(data)))

	leafCount := len(leafPoints)
	if leafCount >= emptyLeafPtr {
		return nil, errors.Wrapf(ErrTooManyLeaves, "%d distinct points", leafCount)
	}

	width := NextPowerOfTwo(leafCount)
	nodes := make([]Node, 2*width)
	nodes[0] = EmptyNode
	for i := 0; i < width; i++ {
		if i >= leafCount {
			nodes[width+i] = EmptyNode
			continue
		}
		leaf, err := MakeLeaf(leafPoints[i], uint32(i))
		if err != nil {
			return nil, err
		}
		nodes[width+i] = leaf
	}
	buildInternalNodes(nodes, width)

	idx.nodes = nodes
	idx.boundaries = boundaries
	idx.data = data
	idx.width = width
	idx.leafCount = leafCount
	return idx, nil
}

// buildInternalNodes fills slots [1, width) bottom-up from the leaf row.
func buildInternalNodes(nodes []Node, width int) {
	for i := width - 1; i >= RootIndex; i-- {
		nodes[i] = joinNodes(nodes[LeftChild(i)], nodes[RightChild(i)])
	}
}

// joinNodes returns the parent of two sibling nodes: an internal node enclosing
// whichever of them hold data, or EmptyNode if neither does.
func joinNodes(left, right Node) Node {
	lb, lok := left.Bounds()
	rb, rok := right.Bounds()
	switch {
	case lok && rok:
		return packInternal(lb.Union(rb))
	case lok:
		return packInternal(lb)
	case rok:
		return packInternal(rb)
	}
	return EmptyNode
}
