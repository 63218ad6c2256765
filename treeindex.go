package bvh

import "math/bits"

// The tree is a complete binary tree stored in a flat slice, 1-indexed:
//
//	         1
//	     2       3
//	   4   5   6   7
//
// Slot 0 is unused. With w = NextPowerOfTwo(leafCount) the leaves occupy [w, 2w).

// RootIndex is the slot of the root node.
const RootIndex = 1

// LeftChild returns the slot of the left child of i.
func LeftChild(i int) int { return 2 * i }

// RightChild returns the slot of the right child of i.
func RightChild(i int) int { return 2*i + 1 }

// Parent returns the slot of the parent of i. ok is false at the root.
func Parent(i int) (int, bool) {
	if i <= RootIndex {
		return 0, false
	}
	return i / 2, true
}

// RightSibling returns the slot to the right of i on the same row.
// ok is false when i is the last slot of its row.
func RightSibling(i int) (int, bool) {
	if IsPowerOfTwo(i + 1) {
		return 0, false
	}
	return i + 1, true
}

// DepthOf returns the row of slot i; the root is row 0.
func DepthOf(i int) int {
	return bits.Len(uint(i)) - 1
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns n if it is a power of two, otherwise the next power of two above it.
// It returns 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// nextPreorder returns the slot visited after i in a left-first pre-order walk
// over a tree whose leaves start at width. descend says whether i's children
// should be visited. ok is false when the walk is finished.
func nextPreorder(i, width int, descend bool) (int, bool) {
	if descend && i < width {
		return LeftChild(i), true
	}
	for i&1 == 1 {
		p, ok := Parent(i)
		if !ok {
			return 0, false
		}
		i = p
	}
	if i == RootIndex {
		return 0, false
	}
	return RightSibling(i)
}
