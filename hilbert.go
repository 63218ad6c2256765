package bvh

// hilbertKey is the sort key of a point over the full int16 domain: its
// position along the order 16 Hilbert curve that fills the biased grid.
//
// This is the branchless prefix-scan formulation from
// https://github.com/rawrunprotected/hilbert_curves (public domain), fixed at
// 16 bits per axis.
func hilbertKey(p Point) uint32 {
	x, y := p.biased()

	// quadrant bits of every level at once
	diff := x ^ y
	same := 0xFFFF ^ diff
	neither := 0xFFFF ^ (x | y)
	onlyX := x & (y ^ 0xFFFF)

	a := diff | (same >> 1)
	b := (diff >> 1) ^ diff
	c := ((neither >> 1) ^ (same & (onlyX >> 1))) ^ neither
	d := ((diff & (neither >> 1)) ^ (onlyX >> 1)) ^ onlyX

	// a and b are dead after the last round
	for shift := uint32(2); shift <= 8; shift <<= 1 {
		a, b, c, d = (a&(a>>shift))^(b&(b>>shift)),
			(a&(b>>shift))^(b&((a^b)>>shift)),
			c^(a&(c>>shift))^(b&(d>>shift)),
			d^(b&(c>>shift))^((a^b)&(d>>shift))
	}

	c ^= c >> 1
	d ^= d >> 1
	high := d | (0xFFFF ^ (diff | c))
	return spreadBits(high)<<1 | spreadBits(diff)
}

// spreadBits moves bit i of the low half of v to bit 2i.
func spreadBits(v uint32) uint32 {
	v = (v | v<<8) & 0x00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// custom quicksort that sorts the record order alongside the hilbert values.
// Equal keys are ordered by record index, so the result is deterministic and
// records at the same point keep their input order.
func sortByHilbert(values []uint32, order []int, left, right int) {
	if left >= right {
		return
	}

	mid := (left + right) >> 1
	pivotValue, pivotOrder := values[mid], order[mid]
	less := func(k int) bool {
		return values[k] < pivotValue || (values[k] == pivotValue && order[k] < pivotOrder)
	}
	greater := func(k int) bool {
		return values[k] > pivotValue || (values[k] == pivotValue && order[k] > pivotOrder)
	}

	i := left - 1
	j := right + 1

	for {
		i++
		for less(i) {
			i++
		}
		j--
		for greater(j) {
			j--
		}
		if i >= j {
			break
		}
		values[i], values[j] = values[j], values[i]
		order[i], order[j] = order[j], order[i]
	}

	sortByHilbert(values, order, left, j)
	sortByHilbert(values, order, j+1, right)
}
