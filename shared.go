package bvh

import (
	"io"
	"net"
)

// Shared is a byte Index prepared for handing payload ranges to many consumers
// (connections, writers) without copying. It shares the tree and buffer of the
// Index it was made from.
type Shared struct {
	*Index[byte]
}

// Share wraps idx. Nothing is rebuilt or copied.
func Share(idx *Index[byte]) *Shared {
	return &Shared{Index: idx}
}

// Slices returns read-only views of the given ranges.
func (s *Shared) Slices(ranges []Range) [][]byte {
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		out[i] = s.Slice(r)
	}
	return out
}

// Buffers returns the ranges as net.Buffers, which writes them with a single
// vectored write on connections that support it.
func (s *Shared) Buffers(ranges []Range) net.Buffers {
	return net.Buffers(s.Slices(ranges))
}

// WriteRangesTo writes the payload of each range to w, in order.
func (s *Shared) WriteRangesTo(w io.Writer, ranges []Range) (int64, error) {
	bufs := s.Buffers(ranges)
	return bufs.WriteTo(w)
}
