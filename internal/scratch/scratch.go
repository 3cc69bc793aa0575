// Package scratch provides pooled, reusable buffers for the batch-probe
// pipeline: hash vectors, word-index vectors, gathered words, and exec
// masks are all sized to one lane chunk and would otherwise be reallocated
// on every call to SimdContains. Grounded on the teacher's storage.Mode
// batch-operation bookkeeping (shaia-BloomFilter's internal/storage),
// reworked from its hybrid array/map indexing (which assumed a fixed
// universe of cache-line indices) onto sync.Pool, since the batch-probe
// scratch here has no natural index space to hash into — only a size to
// reuse.
package scratch

import "sync"

// Chunk holds the per-lane working state for one simdContainsChunk call.
type Chunk struct {
	HashVec    []uint32
	WordIdx    []uint32
	Gathered   []uint64
	ExecMask   []bool
	LastMask   []uint64
	RoundMatch []bool
}

var pool = sync.Pool{
	New: func() any { return &Chunk{} },
}

// Get returns a Chunk whose slices are all length n, reusing a pooled
// allocation when one of the right capacity is available. Callers must
// call Put when done.
func Get(n int) *Chunk {
	c := pool.Get().(*Chunk)
	c.HashVec = resizeU32(c.HashVec, n)
	c.WordIdx = resizeU32(c.WordIdx, n)
	c.Gathered = resizeU64(c.Gathered, n)
	c.ExecMask = resizeBool(c.ExecMask, n)
	c.LastMask = resizeU64(c.LastMask, n)
	c.RoundMatch = resizeBool(c.RoundMatch, n)
	return c
}

// Put returns c to the pool for reuse by a later Get call.
func Put(c *Chunk) {
	pool.Put(c)
}

func resizeU32(s []uint32, n int) []uint32 {
	if cap(s) < n {
		return make([]uint32, n)
	}
	return s[:n]
}

func resizeU64(s []uint64, n int) []uint64 {
	if cap(s) < n {
		return make([]uint64, n)
	}
	return s[:n]
}

func resizeBool(s []bool, n int) []bool {
	if cap(s) < n {
		return make([]bool, n)
	}
	return s[:n]
}
