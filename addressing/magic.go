package addressing

import "github.com/shaia/go-approx-filters/internal/bitmath"

// magic holds the precomputed constants for "cheap" unsigned 32-bit modulo
// by a non-power-of-two divisor: x mod d == x - ((x*multiplier) >> shift) * d,
// with the multiply carried out at 64-bit width.
//
// The constants are derived from the classical Granlund-Montgomery /
// Hacker's Delight unsigned-division-by-constants algorithm (magicu),
// specialized to the "no add correction" case: a divisor is "cheap" when
// its magic number needs no extra add-before-shift step. This mirrors
// dtl::next_cheap_magic in original_source/bloomfilter/block_addressing_logic.hpp,
// which searches upward from the desired block count for the first such
// divisor.
type magic struct {
	divisor    uint32
	multiplier uint64
	shift      uint32 // total shift, already includes the +32 for the 64-bit product
}

// fastMod computes x mod m.divisor using the precomputed magic constants.
func fastMod(x uint32, m magic) uint32 {
	q := (uint64(x) * m.multiplier) >> m.shift
	return x - uint32(q)*m.divisor
}

// computeMagicU32 derives the magic multiplier and shift for unsigned
// division by d, along with whether the "add" correction is required (the
// "expensive" case). d must be >= 2.
func computeMagicU32(d uint32) (m uint64, shift uint32, needsAdd bool) {
	var nc, p, q1, r1, q2, r2, delta uint32

	nc = ^uint32(0) - (-d)%d
	p = 31
	q1 = 0x80000000 / nc
	r1 = 0x80000000 - q1*nc
	q2 = 0x7FFFFFFF / d
	r2 = 0x7FFFFFFF - q2*d

	for {
		p++
		if r1 >= nc-r1 {
			q1 = 2*q1 + 1
			r1 = 2*r1 - nc
		} else {
			q1 = 2 * q1
			r1 = 2 * r1
		}
		if r2+1 >= d-r2 {
			if q2 >= 0x7FFFFFFF {
				needsAdd = true
			}
			q2 = 2*q2 + 1
			r2 = 2*r2 + 1 - d
		} else {
			if q2 >= 0x80000000 {
				needsAdd = true
			}
			q2 = 2 * q2
			r2 = 2*r2 + 1
		}
		delta = d - 1 - r2
		if !(p < 64 && (q1 < delta || (q1 == delta && r1 == 0))) {
			break
		}
	}

	m = uint64(q2) + 1
	shift = p - 32 + 32 // the +32 accounts for the 64-bit product's low half
	return
}

// nextCheapMagic returns the smallest divisor d >= desired for which
// computeMagicU32 needs no add correction, along with its magic constants.
// desired must be >= 2 (callers promote smaller requests via minBlocks).
func nextCheapMagic(desired uint32) magic {
	if desired < 2 {
		desired = 2
	}
	const searchLimit = 1 << 20 // generous bound; a cheap magic is always found quickly in practice
	for d := desired; d < desired+searchLimit; d++ {
		mul, shift, needsAdd := computeMagicU32(d)
		if !needsAdd {
			return magic{divisor: d, multiplier: mul, shift: shift}
		}
	}
	// Unreachable for any realistic divisor: dividing by a power of two
	// never needs the add correction, so the search terminates there at
	// the very latest.
	d := bitmath.NextPowerOfTwo(desired)
	mul, shift, _ := computeMagicU32(d)
	return magic{divisor: d, multiplier: mul, shift: shift}
}
