package bvh

import (
	"fmt"

	"github.com/pkg/errors"
)

// Node is a packed tree node: a single 64-bit word holding either an internal
// bounding box or a leaf (point + pointer into the leaf boundary table).
//
// The word is read as two 32-bit lanes, left (high) and right (low).
//
//	Internal: left  = min.x<<16 | min.y
//	          right = max.x<<16 | max.y
//	Leaf:     left  = x<<15 | ptr>>15
//	          right = 1<<31 | y<<15 | ptr&0x7FFF
//
// Coordinates are the raw two's-complement bits of the int16 values. A node is a
// leaf iff the top bit of left is 0 and the top bit of right is 1. For a box that
// pattern means min.x >= 0 and max.x < 0, which no valid box has, so no tag bit is spent.
type Node uint64

const (
	// MaxLeafPtr is the largest value a leaf pointer can hold.
	MaxLeafPtr = 1<<30 - 1

	// emptyLeafPtr marks the empty sentinel used to pad the tree. Real leaves
	// therefore use pointers strictly below it.
	emptyLeafPtr = MaxLeafPtr

	laneHighBit = 1 << 31
	ptrLowMask  = 1<<15 - 1
)

// EmptyNode is the padding sentinel for slots that hold no data.
var EmptyNode = packLeaf(Point{}, emptyLeafPtr)

// NodeKind discriminates the variants a Node can hold.
type NodeKind uint8

const (
	KindEmpty NodeKind = iota
	KindInternal
	KindLeaf
)

func (k NodeKind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindInternal:
		return "Internal"
	case KindLeaf:
		return "Leaf"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// MakeLeaf packs a leaf node. ptr must not exceed MaxLeafPtr; passing MaxLeafPtr
// itself yields EmptyNode.
func MakeLeaf(p Point, ptr uint32) (Node, error) {
	if ptr > MaxLeafPtr {
		return 0, errors.Wrapf(ErrLeafPointerOverflow, "ptr %#x", ptr)
	}
	return packLeaf(p, ptr), nil
}

// MakeInternal packs an internal node. The box must satisfy Min <= Max.
func MakeInternal(box AABB) (Node, error) {
	if !box.Valid() {
		return 0, errors.Wrapf(ErrMalformedBox, "%v -> %v", box.Min, box.Max)
	}
	return packInternal(box), nil
}

func packLeaf(p Point, ptr uint32) Node {
	left := uint32(uint16(p.X))<<15 | ptr>>15
	right := laneHighBit | uint32(uint16(p.Y))<<15 | ptr&ptrLowMask
	return Node(uint64(left)<<32 | uint64(right))
}

func packInternal(box AABB) Node {
	left := uint32(uint16(box.Min.X))<<16 | uint32(uint16(box.Min.Y))
	right := uint32(uint16(box.Max.X))<<16 | uint32(uint16(box.Max.Y))
	return Node(uint64(left)<<32 | uint64(right))
}

func (n Node) lanes() (left, right uint32) {
	return uint32(n >> 32), uint32(n)
}

func (n Node) isLeafPattern() bool {
	left, right := n.lanes()
	return left&laneHighBit == 0 && right&laneHighBit != 0
}

// Kind classifies the node in O(1).
func (n Node) Kind() NodeKind {
	if !n.isLeafPattern() {
		return KindInternal
	}
	if n.ptr() == emptyLeafPtr {
		return KindEmpty
	}
	return KindLeaf
}

func (n Node) ptr() uint32 {
	left, right := n.lanes()
	return (left&ptrLowMask)<<15 | right&ptrLowMask
}

// Leaf returns the point and pointer of a leaf node. ok is false for internal and empty nodes.
func (n Node) Leaf() (p Point, ptr uint32, ok bool) {
	if n.Kind() != KindLeaf {
		return Point{}, 0, false
	}
	left, right := n.lanes()
	p = Point{
		X: int16(uint16(left >> 15)),
		Y: int16(uint16(right >> 15)),
	}
	return p, n.ptr(), true
}

// Internal returns the box of an internal node. ok is false for leaves and empty nodes.
func (n Node) Internal() (AABB, bool) {
	if n.isLeafPattern() {
		return AABB{}, false
	}
	left, right := n.lanes()
	return AABB{
		Min: Point{X: int16(uint16(left >> 16)), Y: int16(uint16(left))},
		Max: Point{X: int16(uint16(right >> 16)), Y: int16(uint16(right))},
	}, true
}

// Bounds returns the box enclosing everything under n: the node's own box for an
// internal node, and the unit box of its point for a leaf. ok is false for empty nodes.
func (n Node) Bounds() (AABB, bool) {
	switch n.Kind() {
	case KindInternal:
		return n.Internal()
	case KindLeaf:
		p, _, _ := n.Leaf()
		return UnitAABB(p), true
	}
	return AABB{}, false
}

func (n Node) String() string {
	switch n.Kind() {
	case KindInternal:
		box, _ := n.Internal()
		return fmt.Sprintf("Internal(%v -> %v)", box.Min, box.Max)
	case KindLeaf:
		p, ptr, _ := n.Leaf()
		return fmt.Sprintf("Leaf(%v -> %d)", p, ptr)
	}
	return "Empty"
}
