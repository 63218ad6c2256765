package bvh

import (
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// packet is a chunk location with the bytes that should be sent to players near it.
type packet struct {
	at   Point
	data []byte
}

func (p packet) Point() Point    { return p.at }
func (p packet) Payload() []byte { return p.data }

// entity is a single id at a location.
type entity struct {
	at Point
	id uint32
}

func (e entity) Point() Point      { return e.at }
func (e entity) Payload() []uint32 { return []uint32{e.id} }

func diagonalPackets(n int, unitsPer int) []packet {
	packets := make([]packet, n)
	next := byte(1)
	for i := range packets {
		data := make([]byte, unitsPer)
		for k := range data {
			data[k] = next
			next++
		}
		packets[i] = packet{at: Pt(int16(i), int16(i)), data: data}
	}
	return packets
}

// randomEntities scatters n entities over [-spread, spread) on both axes.
// A small spread produces many records sharing a point.
func randomEntities(rng *rand.Rand, n, spread int) []entity {
	ents := make([]entity, n)
	for i := range ents {
		ents[i] = entity{
			at: Pt(int16(rng.Intn(2*spread)-spread), int16(rng.Intn(2*spread)-spread)),
			id: uint32(i),
		}
	}
	return ents
}

func randomBox(rng *rand.Rand, spread, maxWindow int) AABB {
	lo := Pt(int16(rng.Intn(2*spread)-spread), int16(rng.Intn(2*spread)-spread))
	hi := Pt(
		int16(min(int(lo.X)+rng.Intn(maxWindow), math.MaxInt16)),
		int16(min(int(lo.Y)+rng.Intn(maxWindow), math.MaxInt16)),
	)
	return NewAABB(lo, hi)
}

// requireRangeQuery checks a range query against a brute force scan of the input.
func requireRangeQuery(t *testing.T, idx *Index[uint32], ents []entity, box AABB) int {
	ranges, err := idx.QueryRange(box)
	require.NoError(t, err)
	for i, r := range ranges {
		require.Less(t, r.Start, r.End)
		if i > 0 {
			// merged ranges never touch
			require.Less(t, ranges[i-1].End, r.Start)
		}
	}

	got := []uint32{}
	for _, r := range ranges {
		got = append(got, idx.Slice(r)...)
	}
	want := []uint32{}
	for _, e := range ents {
		if box.ContainsPoint(e.at) {
			want = append(want, e.id)
		}
	}
	slices.Sort(got)
	slices.Sort(want)
	require.Equal(t, want, got, "box %v -> %v", box.Min, box.Max)
	return len(got)
}

// requireNearest checks a nearest query against a brute force scan of the leaves.
// Among equally close leaves the lowest ordinal must win.
func requireNearest(t *testing.T, idx *Index[uint32], p Point) {
	r, found, err := idx.QueryNearest(p)
	require.NoError(t, err)
	require.True(t, found)

	best := uint64(math.MaxUint64)
	bestOrdinal := -1
	for ordinal := 0; ordinal < idx.LeafCount(); ordinal++ {
		lp, _, ok := idx.Node(idx.width + ordinal).Leaf()
		require.True(t, ok)
		if d := lp.SquaredDistance(p); d < best {
			best, bestOrdinal = d, ordinal
		}
	}
	require.Equal(t, idx.LeafRange(bestOrdinal), r, "nearest to %v", p)
}

func TestEmpty(t *testing.T) {
	idx, err := Build[byte]([]packet{})
	require.NoError(t, err)
	require.Equal(t, 0, len(idx.Elements()))
	require.Equal(t, 0, idx.LeafCount())
	require.Equal(t, 0, idx.Depth())

	ranges, err := idx.QueryRange(NewAABB(Pt(0, 0), Pt(100, 100)))
	require.NoError(t, err)
	require.Empty(t, ranges)

	_, found, err := idx.QueryNearest(Pt(0, 0))
	require.NoError(t, err)
	require.False(t, found)

	_, ok := idx.Bounds()
	require.False(t, ok)
	require.Equal(t, "", idx.DebugPrint())
}

func TestBasic(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	spread := 200
	ents := randomEntities(rng, 5000, spread)
	idx, err := Build[uint32](ents)
	require.NoError(t, err)
	require.Equal(t, len(ents), len(idx.Elements()))

	totalResults := 0
	nSamples := 1000
	for i := 0; i < nSamples; i++ {
		totalResults += requireRangeQuery(t, idx, ents, randomBox(rng, spread+10, 40))
	}
	require.Greater(t, totalResults, 0)

	for i := 0; i < nSamples; i++ {
		requireNearest(t, idx, Pt(int16(rng.Intn(4*spread)-2*spread), int16(rng.Intn(4*spread)-2*spread)))
	}
}

func TestDomainExtremes(t *testing.T) {
	corners := []entity{
		{at: Pt(math.MinInt16, math.MinInt16), id: 0},
		{at: Pt(math.MaxInt16, math.MaxInt16), id: 1},
		{at: Pt(math.MinInt16, math.MaxInt16), id: 2},
		{at: Pt(math.MaxInt16, math.MinInt16), id: 3},
		{at: Pt(0, 0), id: 4},
		{at: Pt(-1, -1), id: 5},
	}
	idx, err := Build[uint32](corners)
	require.NoError(t, err)

	bounds, ok := idx.Bounds()
	require.True(t, ok)
	require.Equal(t, FullAABB(), bounds)

	requireRangeQuery(t, idx, corners, FullAABB())
	requireRangeQuery(t, idx, corners, NewAABB(Pt(-1, -1), Pt(0, 0)))
	requireRangeQuery(t, idx, corners, NewAABB(Pt(math.MinInt16, 0), Pt(-1, math.MaxInt16)))

	for _, c := range corners {
		requireNearest(t, idx, c.at)
	}
	requireNearest(t, idx, Pt(math.MaxInt16, 0))
	requireNearest(t, idx, Pt(-20000, 12345))
}

func TestFullDomainQueryCoversEverything(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ents := randomEntities(rng, 777, 30)
	idx, err := Build[uint32](ents)
	require.NoError(t, err)

	ranges, err := idx.QueryRange(FullAABB())
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: len(ents)}}, ranges)
}

func TestPointQueryReturnsInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ents := randomEntities(rng, 2000, 8)
	idx, err := Build[uint32](ents)
	require.NoError(t, err)
	require.Less(t, idx.LeafCount(), len(ents))

	for x := int16(-8); x < 8; x++ {
		for y := int16(-8); y < 8; y++ {
			p := Pt(x, y)
			want := []uint32{}
			for _, e := range ents {
				if e.at == p {
					want = append(want, e.id)
				}
			}
			parts, err := idx.QueryRangeSlices(UnitAABB(p))
			require.NoError(t, err)
			got := []uint32{}
			for _, part := range parts {
				got = append(got, part...)
			}
			// one leaf per point, so the ids come back unsorted in input order
			require.LessOrEqual(t, len(parts), 1)
			require.Equal(t, want, got)
		}
	}
}

func TestNodesWalk(t *testing.T) {
	idx, err := Build[byte](diagonalPackets(5, 1))
	require.NoError(t, err)

	var visited []int
	for slot, n := range idx.Nodes() {
		require.NotEqual(t, KindEmpty, n.Kind())
		visited = append(visited, slot)
	}
	require.Equal(t, []int{1, 2, 4, 8, 9, 5, 10, 11, 3, 6, 12}, visited)

	// stopping early is honoured
	count := 0
	for range idx.Nodes() {
		count++
		if count == 3 {
			break
		}
	}
	require.Equal(t, 3, count)
}

func fillSquare(b *Builder[uint32], sideLength int) {
	b.Reserve(sideLength * sideLength)
	id := uint32(0)
	for x := 0; x < sideLength; x++ {
		for y := 0; y < sideLength; y++ {
			b.Add(Pt(int16(x), int16(y)), []uint32{id})
			id++
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	dim := 1000
	start := time.Now()
	builder := NewBuilder[uint32]()
	fillSquare(builder, dim)
	_, err := builder.Finish()
	require.NoError(b, err)
	end := time.Now()
	b.Logf("Time to build %v elements: %.0f milliseconds", dim*dim, end.Sub(start).Seconds()*1000)
}

func BenchmarkQueryRange(b *testing.B) {
	dim := 1000
	builder := NewBuilder[uint32]()
	fillSquare(builder, dim)
	idx, err := builder.Finish()
	require.NoError(b, err)

	start := time.Now()
	nquery := 1000 * 1000
	sx := 0
	sy := 0
	nranges := 0
	for i := 0; i < nquery; i++ {
		lo := Pt(int16(sx%dim), int16(sy%dim))
		hi := Pt(lo.X+5, lo.Y+5)
		ranges, _ := idx.QueryRange(NewAABB(lo, hi))
		nranges += len(ranges)
		sx++
		sy++
	}
	elapsedS := time.Since(start).Seconds()
	b.Logf("Time per query, returning average of %.1f ranges: %.2f nanoseconds\n", float64(nranges)/float64(nquery), elapsedS*1e9/float64(nquery))
}

func BenchmarkQueryNearest(b *testing.B) {
	dim := 1000
	builder := NewBuilder[uint32]()
	fillSquare(builder, dim)
	idx, err := builder.Finish()
	require.NoError(b, err)

	rng := rand.New(rand.NewSource(0))
	start := time.Now()
	nquery := 1000 * 1000
	for i := 0; i < nquery; i++ {
		_, _, _ = idx.QueryNearest(Pt(int16(rng.Intn(dim+200)-100), int16(rng.Intn(dim+200)-100)))
	}
	elapsedS := time.Since(start).Seconds()
	b.Logf("Time per nearest query: %.2f nanoseconds\n", elapsedS*1e9/float64(nquery))
}
