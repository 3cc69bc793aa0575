// Package hash supplies the opaque hash(key, seed) -> u32 collaborator that
// the addressing, block and probe layers consume. Callers that need a
// different hash family can implement Hasher themselves; Default is the
// one this module ships.
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hasher produces deterministic, seed-dependent 32-bit hash values for a
// key. Distinct seeds must be (approximately) independent; this is a
// requirement on the implementation, not something the caller can check.
type Hasher interface {
	// Hash returns a 32-bit digest of key for the given seed.
	Hash(key []byte, seed uint32) uint32

	// HashVec fills out with Hash(keys[i], seed) for every lane. len(out)
	// must equal len(keys); this is the batch entry point the SIMD probe
	// pipeline drives.
	HashVec(keys [][]byte, seed uint32, out []uint32)
}

// Default is the Hasher used when the caller does not supply one. It is
// backed by xxhash64, which distributes well across seeds when the seed is
// folded into the 64-bit digest before truncation, rather than passed as
// the hash's own seed parameter (xxhash's seed mixes slowly for small
// seed deltas such as 0, 1, 2, ...). The filters in this module call it
// with seed 0 only.
var Default Hasher = defaultHasher{}

type defaultHasher struct{}

func (defaultHasher) Hash(key []byte, seed uint32) uint32 {
	return foldSeed(xxhash.Sum64(key), seed)
}

func (defaultHasher) HashVec(keys [][]byte, seed uint32, out []uint32) {
	for i, k := range keys {
		out[i] = foldSeed(xxhash.Sum64(k), seed)
	}
}

// foldSeed mixes a 64-bit digest with a small integer seed and folds the
// result down to 32 bits. The seed is multiplied by a large odd constant
// first so that adjacent seeds (0, 1, 2, ...) perturb different bit
// positions of the digest instead of just its low bits.
func foldSeed(digest uint64, seed uint32) uint32 {
	digest ^= uint64(seed) * 0x9e3779b97f4a7c15
	digest ^= digest >> 33
	digest *= 0xff51afd7ed558ccd
	digest ^= digest >> 33
	return uint32(digest >> 32)
}

// TagBits is the width of a Cuckoo filter fingerprint.
const TagBits = 16

// Tag derives a non-zero 16-bit fingerprint for key. Tag never returns 0,
// since 0 is the cuckoo table's empty-slot sentinel.
func Tag(key []byte) uint16 {
	h := murmur3.Sum32WithSeed(key, 0)
	t := uint16(h)
	if t == 0 {
		t = uint16(h >> 16)
		if t == 0 {
			t = 1
		}
	}
	return t
}

// PartialTag rehashes a tag to derive the XOR value used for partial-key
// Cuckoo hashing: i2 = i1 ^ PartialTag(tag). Rehashing the tag (rather than
// the original key) is what lets the cuckoo filter's displacement loop
// recompute a displaced tag's alternate bucket from the tag alone.
func PartialTag(tag uint16) uint32 {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], tag)
	return murmur3.Sum32WithSeed(buf[:], 0x5bd1e995)
}
