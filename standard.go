package bloomfilter

import (
	"fmt"
	"math/bits"

	"github.com/shaia/go-approx-filters/addressing"
	"github.com/shaia/go-approx-filters/block"
	"github.com/shaia/go-approx-filters/internal/hash"
)

// StandardConfig parameterizes a StandardFilter.
type StandardConfig struct {
	// Bits is the requested total bit length. Rounded up to a whole
	// number of 32-bit words.
	Bits uint64

	// K is the number of bits set per insertion / tested per lookup.
	K uint32

	// Sectorized confines each of the K probes to a distinct aligned
	// sub-word of the 32-bit word.
	Sectorized bool

	// Regime selects the block-addressing scheme; here "block" and "word"
	// are the same thing, following bloom_filter_std.hpp's fake
	// single-word block_t.
	Regime addressing.Regime

	// Hasher supplies the underlying hash(key, seed) -> u32 collaborator.
	// A nil Hasher defaults to hash.Default.
	Hasher hash.Hasher
}

// StandardFilter is the "standard" (unblocked) Bloom filter: one 32-bit
// word is the unit of addressing, rather than a multi-word block, and all
// K bits of a key are set in that one word. It is grounded on
// bloom_filter_std.hpp's block_t{block_bitlength=32, word_cnt=1} trick of
// feeding a single-word block into the same addressing logic the blocked
// filter uses.
type StandardFilter struct {
	words []uint32

	addr   *addressing.Addressing
	layout block.Layout

	k      uint32
	hasher hash.Hasher
}

// NewStandardFilter builds a StandardFilter for the given StandardConfig.
func NewStandardFilter(cfg StandardConfig) (*StandardFilter, error) {
	if cfg.Bits == 0 {
		return nil, fmt.Errorf("%w: Bits must be > 0", ErrInvalidConfig)
	}

	desiredWords := uint32((cfg.Bits + 31) / 32)
	if desiredWords == 0 {
		desiredWords = 1
	}

	addr, err := addressing.New(desiredWords, cfg.Regime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	layout, err := block.NewLayout(32, cfg.K, cfg.Sectorized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if addr.RequiredAddressingBits()+layout.HashBitsConsumed() > 32 {
		return nil, fmt.Errorf("%w: addressing (%d bits) + k*sector_bits (%d bits) exceeds the 32-bit hash budget",
			ErrInvalidConfig, addr.RequiredAddressingBits(), layout.HashBitsConsumed())
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = hash.Default
	}

	return &StandardFilter{
		words:  make([]uint32, addr.BlockCount()),
		addr:   addr,
		layout: layout,
		k:      cfg.K,
		hasher: hasher,
	}, nil
}

// Insert adds key to the filter.
func (f *StandardFilter) Insert(key []byte) {
	h := f.hasher.Hash(key, 0)
	idx := f.addr.BlockIndex(h)
	mask := uint32(f.layout.SelectBits(h, f.addr.RequiredAddressingBits()))
	f.words[idx] |= mask
}

// Contains reports whether key may have been inserted.
func (f *StandardFilter) Contains(key []byte) bool {
	h := f.hasher.Hash(key, 0)
	idx := f.addr.BlockIndex(h)
	mask := uint32(f.layout.SelectBits(h, f.addr.RequiredAddressingBits()))
	return f.words[idx]&mask == mask
}

// BatchInsert inserts every key in keys.
func (f *StandardFilter) BatchInsert(keys [][]byte) {
	for _, k := range keys {
		f.Insert(k)
	}
}

// BatchContains tests every key in keys, writing the index (within keys) of
// each matching key into out starting at offset, using a branchless
// writer-increment so the written prefix is contiguous. It returns the
// number of matches.
func (f *StandardFilter) BatchContains(keys [][]byte, out []int, offset int) int {
	writer := offset
	for i, k := range keys {
		isMatch := 0
		if f.Contains(k) {
			isMatch = 1
		}
		out[writer] = i
		writer += isMatch
	}
	return writer - offset
}

// PopCount returns the number of set bits across the entire bit array.
func (f *StandardFilter) PopCount() int {
	total := 0
	for _, w := range f.words {
		total += bits.OnesCount32(w)
	}
	return total
}

// Bits returns the total bit length of the filter.
func (f *StandardFilter) Bits() uint64 {
	return uint64(len(f.words)) * 32
}

// BlockCount returns the number of blocks the filter addresses; each block
// is one 32-bit word.
func (f *StandardFilter) BlockCount() uint32 {
	return f.addr.BlockCount()
}

// WordCount returns the number of 32-bit words backing the filter.
func (f *StandardFilter) WordCount() int {
	return len(f.words)
}

// LoadFactor returns PopCount() / Bits().
func (f *StandardFilter) LoadFactor() float64 {
	return float64(f.PopCount()) / float64(f.Bits())
}

// Clear resets every bit to zero, in place.
func (f *StandardFilter) Clear() {
	for i := range f.words {
		f.words[i] = 0
	}
}

// Union ORs other's bits into f, in place. f and other must have the same
// word count; mismatched shapes return ErrShapeMismatch.
func (f *StandardFilter) Union(other *StandardFilter) error {
	if len(f.words) != len(other.words) {
		return ErrShapeMismatch
	}
	for i := range f.words {
		f.words[i] |= other.words[i]
	}
	return nil
}

// Intersect ANDs other's bits into f, in place.
func (f *StandardFilter) Intersect(other *StandardFilter) error {
	if len(f.words) != len(other.words) {
		return ErrShapeMismatch
	}
	for i := range f.words {
		f.words[i] &= other.words[i]
	}
	return nil
}
