// Package simd provides the bulk word-array operations (population count,
// vector OR/AND/clear) behind an Operations interface selected once at
// startup, and the lane-parallel batch-probe pipeline used by the blocked
// Bloom filter's SimdContains.
//
// The teacher this package is adapted from dispatched to hand-written
// AVX2/NEON assembly selected via runtime CPUID detection. That assembly
// was never retrieved alongside the teacher (no .s files backing the
// declared //go:noescape functions), so it cannot be linked here. This
// package keeps the detect-once-dispatch-via-Get shape — including real
// feature detection through golang.org/x/sys/cpu — but both arms are
// portable Go: the CPU-capable arm simply unrolls further, rather than
// issuing vector instructions. See DESIGN.md for the full rationale.
package simd

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Operations is the bulk word-array backend used by Union/Intersect/Clear
// and by PopCount-based statistics.
type Operations interface {
	PopCount(words []uint64) int
	VectorOr(dst, src []uint64)
	VectorAnd(dst, src []uint64)
	VectorClear(words []uint64)
}

var (
	hasWideVector bool // true when the host reports a vector unit wide enough to justify deeper unrolling
)

func init() {
	detectCapabilities()
}

func detectCapabilities() {
	switch runtime.GOARCH {
	case "amd64":
		hasWideVector = cpu.X86.HasAVX2
	case "arm64":
		hasWideVector = cpu.ARM64.HasASIMD
	default:
		hasWideVector = false
	}
}

// HasWideVector reports whether the host CPU advertises a vector unit this
// package's wide path is modeled after (AVX2 on amd64, ASIMD/NEON on
// arm64). It does not imply vector instructions are actually issued.
func HasWideVector() bool {
	return hasWideVector
}

// Get returns the bulk-operations backend appropriate for the host.
func Get() Operations {
	if hasWideVector {
		return wideOperations{}
	}
	return narrowOperations{}
}

// narrowOperations unrolls by 4 words per iteration.
type narrowOperations struct{}

func (narrowOperations) PopCount(words []uint64) int { return popCountUnrolled(words, 4) }
func (narrowOperations) VectorOr(dst, src []uint64)  { vectorOrUnrolled(dst, src, 4) }
func (narrowOperations) VectorAnd(dst, src []uint64) { vectorAndUnrolled(dst, src, 4) }
func (narrowOperations) VectorClear(words []uint64)  { vectorClearUnrolled(words, 4) }

// wideOperations unrolls by 8 words per iteration, matching the 8 words of
// one 64-byte cacheline (64 bytes / 8 bytes per word).
type wideOperations struct{}

func (wideOperations) PopCount(words []uint64) int { return popCountUnrolled(words, 8) }
func (wideOperations) VectorOr(dst, src []uint64)  { vectorOrUnrolled(dst, src, 8) }
func (wideOperations) VectorAnd(dst, src []uint64) { vectorAndUnrolled(dst, src, 8) }
func (wideOperations) VectorClear(words []uint64)  { vectorClearUnrolled(words, 8) }
