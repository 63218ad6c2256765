package bvh

import (
	"fmt"
	"strings"
)

// DebugPrint renders the tree one node per line in left-first pre-order:
//
//	01	Internal([0, 0] -> [1, 1])
//	02	  Leaf([0, 0] => [1])
//	03	  Leaf([1, 1] => [2])
//
// Each line starts with the slot number and a tab, and is indented two spaces per level.
// Empty padding slots are skipped.
func (b *Index[T]) DebugPrint() string {
	var sb strings.Builder
	for slot, n := range b.Nodes() {
		if sb.Len() != 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%02d\t%s", slot, strings.Repeat("  ", DepthOf(slot)))
		if box, ok := n.Internal(); ok {
			fmt.Fprintf(&sb, "Internal(%v -> %v)", box.Min, box.Max)
			continue
		}
		p, ptr, _ := n.Leaf()
		fmt.Fprintf(&sb, "Leaf(%v => %v)", p, b.Slice(b.LeafRange(int(ptr))))
	}
	return sb.String()
}
