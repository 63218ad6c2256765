package bvh

import (
	"fmt"
	"math"
)

// Point is a 2D integer coordinate. Each axis spans the full int16 range.
type Point struct {
	X int16
	Y int16
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y int16) Point {
	return Point{X: x, Y: y}
}

// String renders the point as [x, y].
func (p Point) String() string {
	return fmt.Sprintf("[%d, %d]", p.X, p.Y)
}

// SquaredDistance returns the squared euclidean distance between p and q.
// The result never overflows, even for opposite corners of the coordinate domain.
func (p Point) SquaredDistance(q Point) uint64 {
	dx := absDiff(p.X, q.X)
	dy := absDiff(p.Y, q.Y)
	return dx*dx + dy*dy
}

// biased maps the signed coordinate onto [0, 65535] while preserving order.
// This is the input space for the Hilbert curve.
func (p Point) biased() (uint32, uint32) {
	return uint32(uint16(p.X) ^ 0x8000), uint32(uint16(p.Y) ^ 0x8000)
}

// AABB is an axis-aligned bounding box. Min and Max are both inclusive.
type AABB struct {
	Min Point
	Max Point
}

// NewAABB returns the box spanning lo to hi.
func NewAABB(lo, hi Point) AABB {
	return AABB{Min: lo, Max: hi}
}

// UnitAABB returns the degenerate box containing only p.
func UnitAABB(p Point) AABB {
	return AABB{Min: p, Max: p}
}

// FullAABB returns the box covering the entire coordinate domain.
func FullAABB() AABB {
	return AABB{
		Min: Point{X: math.MinInt16, Y: math.MinInt16},
		Max: Point{X: math.MaxInt16, Y: math.MaxInt16},
	}
}

// InvertedAABB returns a box that encloses nothing, which is the identity for Union and Enclose.
func InvertedAABB() AABB {
	return AABB{
		Min: Point{X: math.MaxInt16, Y: math.MaxInt16},
		Max: Point{X: math.MinInt16, Y: math.MinInt16},
	}
}

// Valid reports whether Min <= Max on both axes.
func (b AABB) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y
}

// IsUnit reports whether the box covers exactly one point.
func (b AABB) IsUnit() bool {
	return b.Min == b.Max
}

// ContainsPoint reports whether p lies inside the box, edges included.
func (b AABB) ContainsPoint(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Intersects reports whether the two boxes share at least one point.
func (b AABB) Intersects(o AABB) bool {
	return o.Max.X >= b.Min.X && o.Min.X <= b.Max.X && o.Max.Y >= b.Min.Y && o.Min.Y <= b.Max.Y
}

// Union returns the smallest box enclosing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: Point{X: min(b.Min.X, o.Min.X), Y: min(b.Min.Y, o.Min.Y)},
		Max: Point{X: max(b.Max.X, o.Max.X), Y: max(b.Max.Y, o.Max.Y)},
	}
}

// Enclose returns the smallest box enclosing both b and p.
func (b AABB) Enclose(p Point) AABB {
	return b.Union(UnitAABB(p))
}

// Extents returns the width and height of the box.
func (b AABB) Extents() (uint16, uint16) {
	return uint16(absDiff(b.Max.X, b.Min.X)), uint16(absDiff(b.Max.Y, b.Min.Y))
}

// MinMaxSquaredDistance returns the smallest and largest squared distance from p
// to any point inside the box. The minimum is zero when p is inside.
func (b AABB) MinMaxSquaredDistance(p Point) (uint64, uint64) {
	nearX, farX := axisDistance(p.X, b.Min.X, b.Max.X)
	nearY, farY := axisDistance(p.Y, b.Min.Y, b.Max.Y)
	return nearX*nearX + nearY*nearY, farX*farX + farY*farY
}

func axisDistance(v, lo, hi int16) (near, far uint64) {
	switch {
	case v < lo:
		near = absDiff(v, lo)
	case v > hi:
		near = absDiff(v, hi)
	}
	return near, max(absDiff(v, lo), absDiff(v, hi))
}

func absDiff(a, b int16) uint64 {
	if a > b {
		return uint64(int32(a) - int32(b))
	}
	return uint64(int32(b) - int32(a))
}
