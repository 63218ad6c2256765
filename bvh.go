// Package bvh is a static, memory-compact bounding volume hierarchy over 2D
// int16 points. Each point tags a variable-length payload (packets, entity ids,
// ...). The index is built once from a batch of records and is then read-only,
// so any number of goroutines may query it concurrently.
//
// Records are sorted along a Hilbert curve and laid out as the leaves of a
// complete binary tree stored in a flat slice of 64-bit packed nodes. Payloads
// are concatenated into one buffer in leaf order, which lets a range query
// return a handful of merged contiguous ranges instead of one entry per hit.
package bvh

import (
	"iter"

	"github.com/google/uuid"
)

// Range is a half-open range [Start, End) into Index.Elements.
type Range struct {
	Start int
	End   int
}

// Len returns the number of units in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Index is an immutable BVH. Create one with Build or Builder.Finish.
type Index[T any] struct {
	nodes      []Node   // 1-indexed implicit tree, len = 2*width
	boundaries []uint32 // leaf i owns data[boundaries[i]:boundaries[i+1]]
	data       []T
	width      int // first leaf slot
	leafCount  int
	id         uuid.UUID
	opts       options
}

// Elements returns the payload buffer. Callers must not modify it.
func (b *Index[T]) Elements() []T {
	return b.data
}

// Slice returns the payload units covered by r. The returned slice has its
// capacity clipped so that appending to it cannot overwrite neighbouring payloads.
func (b *Index[T]) Slice(r Range) []T {
	return b.data[r.Start:r.End:r.End]
}

// LeafCount returns the number of distinct points in the index.
func (b *Index[T]) LeafCount() int {
	return b.leafCount
}

// Depth returns the number of edges between the root and the leaf row.
func (b *Index[T]) Depth() int {
	if b.width == 0 {
		return 0
	}
	return DepthOf(b.width)
}

// NodeCount returns the length of the flat node slice, including the unused slot 0.
func (b *Index[T]) NodeCount() int {
	return len(b.nodes)
}

// Node returns the node in slot i.
func (b *Index[T]) Node(i int) Node {
	return b.nodes[i]
}

// Bounds returns the box enclosing every point in the index. ok is false for an empty index.
func (b *Index[T]) Bounds() (AABB, bool) {
	if len(b.nodes) == 0 {
		return AABB{}, false
	}
	return b.nodes[RootIndex].Bounds()
}

// LeafRange returns the payload range of the leaf with the given ordinal.
func (b *Index[T]) LeafRange(ordinal int) Range {
	return Range{
		Start: int(b.boundaries[ordinal]),
		End:   int(b.boundaries[ordinal+1]),
	}
}

// BuildID identifies this build. It is preserved by snapshots.
func (b *Index[T]) BuildID() uuid.UUID {
	return b.id
}

// Nodes walks the non-empty nodes in left-first pre-order, yielding each slot and node.
func (b *Index[T]) Nodes() iter.Seq2[int, Node] {
	return func(yield func(int, Node) bool) {
		if len(b.nodes) == 0 {
			return
		}
		i := RootIndex
		for {
			n := b.nodes[i]
			kind := n.Kind()
			if kind != KindEmpty && !yield(i, n) {
				return
			}
			next, ok := nextPreorder(i, b.width, kind == KindInternal)
			if !ok {
				return
			}
			i = next
		}
	}
}
