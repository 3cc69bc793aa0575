// Package block implements the in-block (or in-word, for the standard
// filter) bit-selection discipline: given a hash value and the number of
// high bits already consumed to address a word, derive the k bit positions
// a probe sets or tests. See bloomfilter.hpp::which_bits in the original
// source this module is grounded on.
package block

import (
	"errors"
	"fmt"

	"github.com/shaia/go-approx-filters/internal/bitmath"
)

// ErrInvalidLayout is returned by NewLayout when the requested parameters
// cannot address a word without undefined shift behavior or hash-bit
// overrun.
var ErrInvalidLayout = errors.New("block: invalid layout parameters")

// Layout precomputes the constants needed to turn a hash value into a
// within-word bit mask. A Layout is immutable once built and safe for
// concurrent use.
type Layout struct {
	WordBits   uint32 // bit width of the word a probe writes into (32 or 64)
	K          uint32 // number of probes (bits set per insert/tested per contains)
	Sectorized bool

	sectorCount      uint32 // s = next_power_of_two(k) when sectorized, else 1
	sectorBits       uint32 // bits per sector = WordBits / sectorCount
	sectorBitsLog2   uint32
	sectorMask       uint32
	wordBitsMask     uint32 // WordBits - 1, used for sector_offset's mod
}

// NewLayout builds a Layout for wordBits-wide words, k probes per
// insert/contains, optionally distributing the k probes across disjoint
// sectors of the word. wordBits must be 32 or 64; k must be in [1, 16].
func NewLayout(wordBits uint32, k uint32, sectorized bool) (Layout, error) {
	if wordBits != 32 && wordBits != 64 {
		return Layout{}, fmt.Errorf("%w: word bit width must be 32 or 64, got %d", ErrInvalidLayout, wordBits)
	}
	if k < 1 || k > 16 {
		return Layout{}, fmt.Errorf("%w: k must be in [1, 16], got %d", ErrInvalidLayout, k)
	}

	sectorCount := uint32(1)
	if sectorized {
		sectorCount = bitmath.NextPowerOfTwo(k)
	}
	if wordBits%sectorCount != 0 {
		return Layout{}, fmt.Errorf("%w: %d sectors do not evenly divide a %d-bit word", ErrInvalidLayout, sectorCount, wordBits)
	}

	sectorBits := wordBits / sectorCount
	l := Layout{
		WordBits:       wordBits,
		K:              k,
		Sectorized:     sectorized,
		sectorCount:    sectorCount,
		sectorBits:     sectorBits,
		sectorBitsLog2: bitmath.Log2Floor(sectorBits),
		sectorMask:     sectorBits - 1,
		wordBitsMask:   wordBits - 1,
	}

	if l.HashBitsConsumed() > 32 {
		return Layout{}, fmt.Errorf("%w: k=%d probes at %d bits each exceed the 32-bit hash budget", ErrInvalidLayout, k, l.sectorBitsLog2)
	}
	return l, nil
}

// SectorCount returns s, the number of disjoint sub-words a sectorized
// layout divides a word into. A non-sectorized layout has SectorCount() == 1.
func (l Layout) SectorCount() uint32 { return l.sectorCount }

// SectorBits returns the width in bits of one sector.
func (l Layout) SectorBits() uint32 { return l.sectorBits }

// SectorBitsLog2 returns log2(SectorBits()); this is the number of hash
// bits consumed per probe.
func (l Layout) SectorBitsLog2() uint32 { return l.sectorBitsLog2 }

// SectorMask returns SectorBits() - 1, used to mask a bit index down to one
// sector's width.
func (l Layout) SectorMask() uint32 { return l.sectorMask }

// HashBitsConsumed returns how many hash bits SelectBits reads after the
// addressing slice, i.e. k * SectorBitsLog2().
func (l Layout) HashBitsConsumed() uint32 {
	return l.K * l.sectorBitsLog2
}

// SelectBits derives the within-word bit mask for hash, given that
// wordCntLog2 high bits of hash have already been consumed to select the
// word itself. It implements which_bits: for each probe i in [0, K), a
// sector_bitlength_log2-bit slice of hash starting right after the
// addressing slice and advancing by one slice per probe selects a bit
// position within sector i (sector i occupying bits [i*SectorBits,
// (i+1)*SectorBits) of the word when sectorized, or the whole word when not).
func (l Layout) SelectBits(hash uint32, wordCntLog2 uint32) uint64 {
	var word uint64
	for i := uint32(0); i < l.K; i++ {
		shift := 32 - wordCntLog2 - (i+1)*l.sectorBitsLog2
		bitIdx := (hash >> shift) & l.sectorMask
		sectorOffset := (i * l.sectorBits) & l.wordBitsMask
		word |= uint64(1) << (bitIdx + sectorOffset)
	}
	return word
}

// SelectBitsVec fills out[i] = SelectBits(hashes[i], wordCntLog2) for every
// lane; len(out) must equal len(hashes).
func (l Layout) SelectBitsVec(hashes []uint32, wordCntLog2 uint32, out []uint64) {
	for i, h := range hashes {
		out[i] = l.SelectBits(h, wordCntLog2)
	}
}
