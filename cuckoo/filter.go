package cuckoo

import "github.com/shaia/go-approx-filters/internal/hash"

// maxDisplacements bounds the insert-retry loop; on exhaustion the last
// bucket touched is marked overflow and the call reports Overflowed rather
// than looping forever.
const maxDisplacements = 500

// InsertResult is the terminal state of an Insert call.
type InsertResult int

const (
	// Inserted means the key's tag was placed in an empty slot, possibly
	// after some number of displacements.
	Inserted InsertResult = iota
	// Duplicate means the tag was already present in the key's primary
	// bucket; no-op. The alternate bucket is not checked.
	Duplicate
	// Overflowed means the insert reached a bucket that had already
	// overflowed, or the displacement bound was exhausted and the last
	// bucket touched was marked as the saturating overflow sentinel; either way
	// the key's own presence is no longer individually tracked (overflow
	// buckets match every query).
	Overflowed
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "Inserted"
	case Duplicate:
		return "Duplicate"
	case Overflowed:
		return "Overflowed"
	default:
		return "InsertResult(?)"
	}
}

// Filter wraps a Table with the insert-retry state machine: partial-key
// Cuckoo hashing derives the alternate bucket from a displaced tag alone
// (i2 = i1 ^ H_partial(tag)), so only the tag, not the original key, needs
// to be retained across retries.
type Filter struct {
	table Table
}

// New returns an empty Cuckoo filter.
func New() *Filter {
	return &Filter{}
}

func primaryBucket(h uint32) uint32 {
	return h & (BucketCount - 1)
}

// Insert places key into the filter. See InsertResult for the terminal
// states.
func (f *Filter) Insert(key []byte) InsertResult {
	h := hash.Default.Hash(key, 0)
	tag := hash.Tag(key)
	i1 := primaryBucket(h)

	outcome := f.table.InsertTag(i1, tag)
	if outcome.Duplicate {
		return Duplicate
	}
	if outcome.Overflow {
		return Overflowed
	}
	if !outcome.Kicked {
		return Inserted
	}

	currentBucket := i1
	currentTag := outcome.KickedTag
	for i := 0; i < maxDisplacements; i++ {
		altBucket := currentBucket ^ hash.PartialTag(currentTag)&(BucketCount-1)
		outcome := f.table.InsertTag(altBucket, currentTag)
		switch {
		case outcome.Overflow:
			return Overflowed
		case !outcome.Kicked:
			// Placed in an empty slot, or altBucket already holds an
			// identical tag (Duplicate), which answers for the displaced
			// entry since altBucket is one of its two buckets.
			return Inserted
		default:
			currentBucket = altBucket
			currentTag = outcome.KickedTag
		}
	}

	f.table.markOverflow(currentBucket)
	return Overflowed
}

// Contains reports whether key may be present. False positives are
// possible (by design, including permanently for any query once a
// relevant bucket has overflowed); false negatives are not, absent
// external corruption.
func (f *Filter) Contains(key []byte) bool {
	h := hash.Default.Hash(key, 0)
	tag := hash.Tag(key)
	i1 := primaryBucket(h)
	i2 := i1 ^ hash.PartialTag(tag)&(BucketCount-1)
	return f.table.FindTagInBuckets(i1, i2, tag)
}

// BatchInsert inserts every key in keys, returning one InsertResult per key.
func (f *Filter) BatchInsert(keys [][]byte) []InsertResult {
	results := make([]InsertResult, len(keys))
	for i, k := range keys {
		results[i] = f.Insert(k)
	}
	return results
}

// BatchContains tests every key in keys, writing the index (within keys)
// of each matching key into out starting at offset, via the same
// branchless writer-increment as the Bloom filters' batch path. It returns
// the number of matches.
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

// Capacity returns the table's nominal tag capacity.
func (f *Filter) Capacity() int {
	return Capacity
}
