// Package addressing maps a hash value to a block index for the blocked
// Bloom filter layer (L1 of the probe pipeline). It implements the three
// addressing regimes from block_addressing_logic.hpp: a power-of-two shift,
// a "cheap magic" multiply-shift modulo, and a dynamic mode that picks
// between the two at construction time.
package addressing

import (
	"errors"
	"fmt"

	"github.com/shaia/go-approx-filters/internal/bitmath"
)

// Regime selects how a block index is derived from the high bits of a hash.
type Regime int

const (
	// PowerOfTwo rounds the requested block count up to a power of two and
	// extracts the index with a shift. Always cheap; may overshoot the
	// requested block count by up to 2x.
	PowerOfTwo Regime = iota

	// Magic rounds the requested block count up only as far as needed to
	// find a divisor with a cheap (add-free) magic multiply, then reduces
	// the hash with a multiply-shift-subtract. Wastes less memory than
	// PowerOfTwo at the cost of a few extra instructions per probe.
	Magic

	// Dynamic chooses PowerOfTwo or Magic at construction time, whichever
	// wastes less memory for the requested block count.
	Dynamic
)

func (r Regime) String() string {
	switch r {
	case PowerOfTwo:
		return "power-of-two"
	case Magic:
		return "magic"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("addressing.Regime(%d)", int(r))
	}
}

// ErrInvalidBlockCount is returned when New is asked to address zero blocks.
var ErrInvalidBlockCount = errors.New("addressing: desired block count must be >= 1")

// minBlocks is the smallest block count any regime will actually address;
// a single block defeats the purpose of blocking; desired counts below
// this are promoted up to it, mirroring bloomfilter.hpp's min_m promotion
// at the block-addressing layer.
const minBlocks = 2

// pow2Addressing implements the PowerOfTwo regime: block index is the top
// log2(blockCnt) bits of the hash.
type pow2Addressing struct {
	blockCnt     uint32
	blockCntLog2 uint32
}

func newPow2Addressing(desired uint32) pow2Addressing {
	blockCnt := bitmath.NextPowerOfTwo(desired)
	return pow2Addressing{
		blockCnt:     blockCnt,
		blockCntLog2: bitmath.Log2Floor(blockCnt),
	}
}

func (a pow2Addressing) blockIndex(hash uint32) uint32 {
	return hash >> (32 - a.blockCntLog2)
}

// magicAddressing implements the Magic regime: the top addressingBits bits
// of the hash are isolated, then reduced modulo blockCnt via the
// cheap-magic fast path. Addressing bits are allocated as if the block
// count were rounded up to the next power of two (a slight
// over-allocation), then folded down by the magic modulo, matching
// get_required_addressing_bits/get_block_idx in block_addressing_logic.hpp.
type magicAddressing struct {
	blockCnt       uint32
	addressingBits uint32
	fastDivisor    magic
}

func newMagicAddressing(desired uint32) magicAddressing {
	m := nextCheapMagic(desired)
	return magicAddressing{
		blockCnt:       m.divisor,
		addressingBits: bitmath.Log2Floor(bitmath.NextPowerOfTwo(m.divisor)),
		fastDivisor:    m,
	}
}

func (a magicAddressing) blockIndex(hash uint32) uint32 {
	h := hash >> (32 - a.addressingBits)
	return fastMod(h, a.fastDivisor)
}

// Addressing derives a block index in [0, BlockCount()) from a hash value.
// It is safe for concurrent use by multiple goroutines: all fields are set
// once at construction and never mutated afterward.
type Addressing struct {
	regime Regime
	pow2   pow2Addressing
	magic  magicAddressing
}

// New builds an Addressing for the given regime, sized to hold at least
// desiredBlocks blocks (promoted up to minBlocks if smaller). For Dynamic,
// the constructor compares what PowerOfTwo and Magic would each produce and
// keeps whichever wastes less memory, preferring PowerOfTwo on a tie since
// its per-probe cost is lower.
func New(desiredBlocks uint32, regime Regime) (*Addressing, error) {
	if desiredBlocks == 0 {
		return nil, ErrInvalidBlockCount
	}
	if desiredBlocks < minBlocks {
		desiredBlocks = minBlocks
	}

	switch regime {
	case PowerOfTwo:
		return &Addressing{regime: PowerOfTwo, pow2: newPow2Addressing(desiredBlocks)}, nil
	case Magic:
		return &Addressing{regime: Magic, magic: newMagicAddressing(desiredBlocks)}, nil
	case Dynamic:
		return newDynamicAddressing(desiredBlocks), nil
	default:
		return nil, fmt.Errorf("addressing: unknown regime %v", regime)
	}
}

// newDynamicAddressing picks PowerOfTwo unless Magic strictly reduces the
// addressed block count, mirroring determine_addressing_mode in
// block_addressing_logic.hpp.
func newDynamicAddressing(desiredBlocks uint32) *Addressing {
	if bitmath.IsPowerOfTwo(desiredBlocks) {
		return &Addressing{regime: PowerOfTwo, pow2: newPow2Addressing(desiredBlocks)}
	}

	pow2 := newPow2Addressing(desiredBlocks)
	mgc := newMagicAddressing(desiredBlocks)

	if mgc.blockCnt < pow2.blockCnt {
		return &Addressing{regime: Magic, magic: mgc}
	}
	return &Addressing{regime: PowerOfTwo, pow2: pow2}
}

// Regime reports which concrete addressing scheme this instance settled on.
// For a Dynamic-constructed Addressing, this is PowerOfTwo or Magic, never
// Dynamic itself.
func (a *Addressing) Regime() Regime {
	return a.regime
}

// BlockCount returns the number of blocks this Addressing can index into,
// which may exceed the originally requested count.
func (a *Addressing) BlockCount() uint32 {
	switch a.regime {
	case Magic:
		return a.magic.blockCnt
	default:
		return a.pow2.blockCnt
	}
}

// RequiredAddressingBits returns how many high bits of a hash this
// Addressing consumes to produce a block index. Callers that also need
// lower bits (for the sector/word selection layer) must not reuse these
// bits for anything else.
func (a *Addressing) RequiredAddressingBits() uint32 {
	switch a.regime {
	case Magic:
		return a.magic.addressingBits
	default:
		return a.pow2.blockCntLog2
	}
}

// BlockIndex maps a hash to a block index in [0, BlockCount()).
func (a *Addressing) BlockIndex(hash uint32) uint32 {
	switch a.regime {
	case Magic:
		return a.magic.blockIndex(hash)
	default:
		return a.pow2.blockIndex(hash)
	}
}

// BlockIndexVec fills out[i] = BlockIndex(hashes[i]) for every lane. It is
// the batch entry point the SIMD probe pipeline drives; len(out) must equal
// len(hashes).
func (a *Addressing) BlockIndexVec(hashes []uint32, out []uint32) {
	switch a.regime {
	case Magic:
		m := a.magic.fastDivisor
		shift := 32 - a.magic.addressingBits
		for i, h := range hashes {
			out[i] = fastMod(h>>shift, m)
		}
	default:
		shift := 32 - a.pow2.blockCntLog2
		for i, h := range hashes {
			out[i] = h >> shift
		}
	}
}
