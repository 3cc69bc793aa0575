// Package bloomfilter implements a blocked Bloom filter (Filter) and a
// "standard" unblocked Bloom filter (StandardFilter), both addressed
// through package addressing and bit-selected through package block. Both
// are high-throughput approximate set-membership structures intended as
// join/probe accelerators: false positives are possible, false negatives
// are not.
package bloomfilter

import (
	"fmt"
	"sync/atomic"

	"github.com/shaia/go-approx-filters/addressing"
	"github.com/shaia/go-approx-filters/block"
	"github.com/shaia/go-approx-filters/internal/hash"
	"github.com/shaia/go-approx-filters/internal/scratch"
	"github.com/shaia/go-approx-filters/internal/simd"
)

// Config parameterizes a blocked Filter.
type Config struct {
	// Bits is the requested total bit length of the filter. The actual
	// length is rounded up to a whole number of blocks and may exceed
	// this value; it is never rounded down.
	Bits uint64

	// K is the number of bits set per insertion / tested per lookup.
	K uint32

	// BlockBits is the width of one block: 64, 256, or 512.
	BlockBits uint32

	// Sectorized confines each of the K probes to a distinct aligned
	// sub-word of the selected word, bounding collision density per probe.
	Sectorized bool

	// Regime selects the block-addressing scheme. The zero value,
	// addressing.PowerOfTwo, is a reasonable default; most callers that
	// care about memory overhead want addressing.Dynamic.
	Regime addressing.Regime

	// Hasher supplies the underlying hash(key, seed) -> u32 collaborator.
	// A nil Hasher defaults to hash.Default.
	Hasher hash.Hasher
}

// Filter is a blocked Bloom filter: a bit array partitioned into
// fixed-width blocks, each block one or more 64-bit words, addressed via
// addressing.Addressing at block granularity and block.Layout at
// bit-selection granularity. It is the primary workload of this module.
//
// A Filter is safe for concurrent Contains/BatchContains/SimdContains once
// construction has completed and no Insert is in flight. Insert is not
// reentrant; use InsertAtomic for concurrent inserts.
type Filter struct {
	words []uint64

	addr           *addressing.Addressing
	layout         block.Layout
	wordsPerBlock  uint32
	wordOffsetBits uint32
	wordOffsetMask uint32
	addrBits       uint32 // addr.RequiredAddressingBits() + wordOffsetBits, cached

	k      uint32
	hasher hash.Hasher
}

// NewFilter builds a Filter for the given Config.
func NewFilter(cfg Config) (*Filter, error) {
	if cfg.BlockBits != 64 && cfg.BlockBits != 256 && cfg.BlockBits != 512 {
		return nil, fmt.Errorf("%w: BlockBits must be one of 64, 256, 512, got %d", ErrInvalidConfig, cfg.BlockBits)
	}
	if cfg.Bits == 0 {
		return nil, fmt.Errorf("%w: Bits must be > 0", ErrInvalidConfig)
	}

	wordsPerBlock := cfg.BlockBits / 64
	var wordOffsetBits uint32
	switch wordsPerBlock {
	case 1:
		wordOffsetBits = 0
	case 4:
		wordOffsetBits = 2
	case 8:
		wordOffsetBits = 3
	}

	desiredBlocks := uint32((cfg.Bits + uint64(cfg.BlockBits) - 1) / uint64(cfg.BlockBits))
	if desiredBlocks == 0 {
		desiredBlocks = 1
	}

	addr, err := addressing.New(desiredBlocks, cfg.Regime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	layout, err := block.NewLayout(64, cfg.K, cfg.Sectorized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	addrBits := addr.RequiredAddressingBits() + wordOffsetBits
	if addrBits+layout.HashBitsConsumed() > 32 {
		return nil, fmt.Errorf("%w: addressing (%d bits) + word offset (%d bits) + k*sector_bits (%d bits) exceeds the 32-bit hash budget",
			ErrInvalidConfig, addr.RequiredAddressingBits(), wordOffsetBits, layout.HashBitsConsumed())
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = hash.Default
	}

	return &Filter{
		words:          make([]uint64, addr.BlockCount()*wordsPerBlock),
		addr:           addr,
		layout:         layout,
		wordsPerBlock:  wordsPerBlock,
		wordOffsetBits: wordOffsetBits,
		wordOffsetMask: (1 << wordOffsetBits) - 1,
		addrBits:       addrBits,
		k:              cfg.K,
		hasher:         hasher,
	}, nil
}

// wordIndex derives the absolute word index (within f.words) a hash value
// maps to: the block a key belongs to, times the block's word count, plus
// an in-block word offset drawn from the hash bits immediately following
// the block-addressing slice.
func (f *Filter) wordIndex(h uint32) uint32 {
	blockIdx := f.addr.BlockIndex(h)
	if f.wordsPerBlock == 1 {
		return blockIdx
	}
	offset := (h >> (32 - f.addr.RequiredAddressingBits() - f.wordOffsetBits)) & f.wordOffsetMask
	return blockIdx*f.wordsPerBlock + offset
}

// Insert adds key to the filter, setting K bits within one word of one
// block. Not safe to call concurrently with itself or with another Insert;
// use InsertAtomic for that.
func (f *Filter) Insert(key []byte) {
	h := f.hasher.Hash(key, 0)
	idx := f.wordIndex(h)
	f.words[idx] |= f.layout.SelectBits(h, f.addrBits)
}

// InsertAtomic adds key to the filter using a compare-and-swap retry loop
// on the target word, safe for concurrent callers (grounded on the
// teacher's setBitCacheOptimizedWithOps CAS-retry pattern and
// greatroar/blobloom's setbitAtomic).
func (f *Filter) InsertAtomic(key []byte) {
	h := f.hasher.Hash(key, 0)
	idx := f.wordIndex(h)
	mask := f.layout.SelectBits(h, f.addrBits)
	addr := &f.words[idx]
	for {
		old := atomic.LoadUint64(addr)
		if old&mask == mask {
			return
		}
		if atomic.CompareAndSwapUint64(addr, old, old|mask) {
			return
		}
	}
}

// Contains reports whether key may have been inserted. False positives are
// possible; false negatives are not.
func (f *Filter) Contains(key []byte) bool {
	h := f.hasher.Hash(key, 0)
	idx := f.wordIndex(h)
	mask := f.layout.SelectBits(h, f.addrBits)
	return f.words[idx]&mask == mask
}

// BatchInsert inserts every key in keys.
func (f *Filter) BatchInsert(keys [][]byte) {
	for _, k := range keys {
		f.Insert(k)
	}
}

// BatchContains tests every key in keys, writing the index (within keys)
// of each matching key into out starting at offset, using a branchless
// writer-increment so the written prefix out[offset:offset+n] is
// contiguous. It returns the number of matches n.
func (f *Filter) BatchContains(keys [][]byte, out []int, offset int) int {
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

// SimdContains is the lane-parallel batch-probe pipeline of §4.4, collapsed
// to this filter's single-hash shape: each key's K bits all come from one
// seed-0 hash (the same hash Contains uses), so there is exactly one gather
// round per chunk, not one round per probe. It returns one bool per key and
// must agree with Contains key-for-key.
func (f *Filter) SimdContains(keys [][]byte) []bool {
	n := len(keys)
	result := make([]bool, n)

	for base := 0; base < n; base += simd.Lanes {
		end := base + simd.Lanes
		if end > n {
			end = n
		}
		chunk := keys[base:end]
		matched := f.simdContainsChunk(chunk)
		copy(result[base:end], matched)
	}
	return result
}

func (f *Filter) simdContainsChunk(keys [][]byte) []bool {
	n := len(keys)
	buf := scratch.Get(n)
	defer scratch.Put(buf)
	hashVec, wordIdx, gathered, mask := buf.HashVec, buf.WordIdx, buf.Gathered, buf.LastMask

	f.hasher.HashVec(keys, 0, hashVec)
	for i, h := range hashVec {
		wordIdx[i] = f.wordIndex(h)
		mask[i] = f.layout.SelectBits(h, f.addrBits)
	}
	simd.GatherMasked(f.words, wordIdx, alwaysActive(n), gathered)

	result := make([]bool, n)
	for i := range result {
		result[i] = gathered[i]&mask[i] == mask[i]
	}
	return result
}

func alwaysActive(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

// PopCount returns the number of set bits across the entire bit array.
func (f *Filter) PopCount() int {
	return simd.Get().PopCount(f.words)
}

// Bits returns the total bit length of the filter, block_cnt * block_bitlength.
func (f *Filter) Bits() uint64 {
	return uint64(len(f.words)) * 64
}

// BlockCount returns the number of blocks the filter addresses.
func (f *Filter) BlockCount() uint32 {
	return f.addr.BlockCount()
}

// WordCount returns the number of 64-bit words backing the filter.
func (f *Filter) WordCount() int {
	return len(f.words)
}

// LoadFactor returns PopCount() / Bits(), the fraction of set bits.
func (f *Filter) LoadFactor() float64 {
	return float64(f.PopCount()) / float64(f.Bits())
}

// Stats summarizes a Filter's configuration and current fill level, mirroring
// the teacher's GetCacheStats.
type Stats struct {
	Bits          uint64
	BlockCount    uint32
	WordCount     int
	K             uint32
	Sectorized    bool
	Regime        addressing.Regime
	PopCount      int
	LoadFactor    float64
}

// Stats returns a snapshot of the filter's configuration and fill level.
func (f *Filter) Stats() Stats {
	pop := f.PopCount()
	return Stats{
		Bits:       f.Bits(),
		BlockCount: f.BlockCount(),
		WordCount:  f.WordCount(),
		K:          f.k,
		Sectorized: f.layout.Sectorized,
		Regime:     f.addr.Regime(),
		PopCount:   pop,
		LoadFactor: float64(pop) / float64(f.Bits()),
	}
}

// Clear resets every bit to zero, in place.
func (f *Filter) Clear() {
	simd.Get().VectorClear(f.words)
}

// Union ORs other's bits into f, in place. f and other must have the same
// word count; mismatched shapes return ErrShapeMismatch.
func (f *Filter) Union(other *Filter) error {
	if len(f.words) != len(other.words) {
		return ErrShapeMismatch
	}
	simd.Get().VectorOr(f.words, other.words)
	return nil
}

// Intersect ANDs other's bits into f, in place. f and other must have the
// same word count; mismatched shapes return ErrShapeMismatch.
func (f *Filter) Intersect(other *Filter) error {
	if len(f.words) != len(other.words) {
		return ErrShapeMismatch
	}
	simd.Get().VectorAnd(f.words, other.words)
	return nil
}
