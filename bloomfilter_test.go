package bloomfilter

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/shaia/go-approx-filters/addressing"
)

func keyOf(i int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	return buf[:]
}

// TestNoFalseNegatives is property #1: every inserted key must test
// positive, across a range of input sizes.
func TestNoFalseNegatives(t *testing.T) {
	for _, n := range []int{1, 10, 100, 1000, 10000} {
		f, err := NewFilter(Config{Bits: 1 << 16, K: 4, BlockBits: 256, Sectorized: true, Regime: addressing.Dynamic})
		if err != nil {
			t.Fatalf("NewFilter: %v", err)
		}
		rng := rand.New(rand.NewSource(int64(n)))
		keys := make([][]byte, n)
		for i := range keys {
			keys[i] = keyOf(rng.Int())
			f.Insert(keys[i])
		}
		for _, k := range keys {
			if !f.Contains(k) {
				t.Fatalf("n=%d: inserted key %v not found", n, k)
			}
		}
	}
}

// TestNoFalseNegativesStandard mirrors TestNoFalseNegatives for the
// unblocked variant.
func TestNoFalseNegativesStandard(t *testing.T) {
	f, err := NewStandardFilter(StandardConfig{Bits: 1 << 14, K: 4, Sectorized: true, Regime: addressing.Dynamic})
	if err != nil {
		t.Fatalf("NewStandardFilter: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	keys := make([][]byte, 2000)
	for i := range keys {
		keys[i] = keyOf(rng.Int())
		f.Insert(keys[i])
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("inserted key %v not found", k)
		}
	}
}

// TestIdempotentInsert is property #2: inserting a key twice produces the
// same bit array as inserting it once.
func TestIdempotentInsert(t *testing.T) {
	newF := func() *Filter {
		f, err := NewFilter(Config{Bits: 4096, K: 5, BlockBits: 256, Sectorized: true})
		if err != nil {
			t.Fatalf("NewFilter: %v", err)
		}
		return f
	}

	once := newF()
	twice := newF()

	keys := [][]byte{keyOf(1), keyOf(2), keyOf(3), keyOf(99999)}
	for _, k := range keys {
		once.Insert(k)
		twice.Insert(k)
		twice.Insert(k)
	}

	for i := range once.words {
		if once.words[i] != twice.words[i] {
			t.Fatalf("word %d differs after duplicate insert: %#x vs %#x", i, once.words[i], twice.words[i])
		}
	}
}

// TestSimdContainsAgreesWithScalar is property #5: SimdContains and
// Contains must agree lane by lane, for every lane in a batch whose size
// is not a multiple of simd.Lanes.
func TestSimdContainsAgreesWithScalar(t *testing.T) {
	f, err := NewFilter(Config{Bits: 1 << 14, K: 4, BlockBits: 256, Sectorized: true, Regime: addressing.Dynamic})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	rng := rand.New(rand.NewSource(11))
	inserted := make([][]byte, 200)
	for i := range inserted {
		inserted[i] = keyOf(rng.Int())
		f.Insert(inserted[i])
	}

	queries := make([][]byte, 37) // not a multiple of Lanes
	for i := range queries {
		if i%3 == 0 && i/3 < len(inserted) {
			queries[i] = inserted[i/3]
		} else {
			queries[i] = keyOf(rng.Int())
		}
	}

	got := f.SimdContains(queries)
	for i, q := range queries {
		want := f.Contains(q)
		if got[i] != want {
			t.Fatalf("lane %d: SimdContains=%v, Contains=%v", i, got[i], want)
		}
	}
}

// TestBatchContainsShape is property #6 and scenario S6: the match count
// equals the number of true positions, and the written prefix is exactly
// the matching indices in input order, offset by match_offset.
func TestBatchContainsShape(t *testing.T) {
	f, err := NewFilter(Config{Bits: 4096, K: 4, BlockBits: 256, Sectorized: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	keys := [][]byte{keyOf(1), keyOf(2), keyOf(3), keyOf(4), keyOf(5)}
	f.Insert(keys[1]) // key "2"
	f.Insert(keys[3]) // key "4"

	const offset = 100
	out := make([]int, offset+len(keys))
	n := f.BatchContains(keys, out, offset)

	if n != 2 {
		t.Fatalf("match count = %d, want 2", n)
	}
	want := []int{1, 3}
	for i, w := range want {
		if out[offset+i] != w {
			t.Fatalf("out[%d] = %d, want %d", offset+i, out[offset+i], w)
		}
	}
}

// TestFalsePositiveRateBound is property #9 (loose statistical bound),
// exercised at a single representative k.
func TestFalsePositiveRateBound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping statistical FPR test in -short mode")
	}
	const m = 1 << 16
	const k = 4
	const n = m / 10

	f, err := NewFilter(Config{Bits: m, K: k, BlockBits: 256, Sectorized: true, Regime: addressing.Dynamic})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	inserted := make(map[int64]bool, n)
	for len(inserted) < n {
		v := rng.Int63()
		if inserted[v] {
			continue
		}
		inserted[v] = true
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		f.Insert(buf[:])
	}

	const queries = 200000
	falsePositives := 0
	for i := 0; i < queries; i++ {
		v := rng.Int63()
		if inserted[v] {
			continue
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		if f.Contains(buf[:]) {
			falsePositives++
		}
	}

	observed := float64(falsePositives) / float64(queries)
	bound := 1.5 * math.Pow(1-math.Exp(-float64(k*n)/float64(m)), float64(k))
	if observed > bound {
		t.Fatalf("observed FPR %.4f exceeds loose bound %.4f", observed, bound)
	}
}

// TestScenarioS1 matches spec scenario S1.
func TestScenarioS1(t *testing.T) {
	f, err := NewFilter(Config{Bits: 1024, K: 3, BlockBits: 64, Regime: addressing.PowerOfTwo})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for _, v := range []int{7, 42, 9001} {
		f.Insert(keyOf(v))
	}
	for _, v := range []int{7, 42, 9001} {
		if !f.Contains(keyOf(v)) {
			t.Fatalf("contains(%d) = false, want true", v)
		}
	}
	pop := f.PopCount()
	if pop < 3 || pop > 9 {
		t.Fatalf("popcount() = %d, want in [3, 9]", pop)
	}
}

// TestScenarioS3 matches spec scenario S3.
func TestScenarioS3(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping statistical FPR test in -short mode")
	}
	f, err := NewFilter(Config{Bits: 2048, K: 4, BlockBits: 64, Sectorized: true, Regime: addressing.PowerOfTwo})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	rng := rand.New(rand.NewSource(99))
	inserted := make(map[int64]bool, 500)
	for len(inserted) < 500 {
		v := rng.Int63()
		inserted[v] = true
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		f.Insert(buf[:])
	}
	for v := range inserted {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		if !f.Contains(buf[:]) {
			t.Fatalf("contains(%d) = false, want true", v)
		}
	}

	const queries = 100000
	fp := 0
	for i := 0; i < queries; i++ {
		v := rng.Int63()
		if inserted[v] {
			continue
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		if f.Contains(buf[:]) {
			fp++
		}
	}
	if rate := float64(fp) / float64(queries); rate >= 0.05 {
		t.Fatalf("FPR = %.4f, want < 0.05", rate)
	}
}

// TestScenarioS6 matches spec scenario S6 exactly.
func TestScenarioS6(t *testing.T) {
	f, err := NewFilter(Config{Bits: 4096, K: 4, BlockBits: 256, Sectorized: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	keys := [][]byte{keyOf(1), keyOf(2), keyOf(3), keyOf(4), keyOf(5)}
	f.Insert(keys[1]) // 2
	f.Insert(keys[3]) // 4

	out := make([]int, 100+len(keys))
	n := f.BatchContains(keys, out, 100)
	if n != 2 {
		t.Fatalf("match count = %d, want 2", n)
	}
	if out[100] != 1 || out[101] != 3 {
		t.Fatalf("out[100:102] = %v, want [1, 3]", out[100:102])
	}
}

// TestUnionIntersectShapeMismatch checks the added bulk operations reject
// differently-shaped operands rather than silently corrupting memory.
func TestUnionIntersectShapeMismatch(t *testing.T) {
	a, err := NewFilter(Config{Bits: 1024, K: 2, BlockBits: 64})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	b, err := NewFilter(Config{Bits: 2048, K: 2, BlockBits: 64})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if err := a.Union(b); err != ErrShapeMismatch {
		t.Fatalf("Union across shapes: got %v, want ErrShapeMismatch", err)
	}
	if err := a.Intersect(b); err != ErrShapeMismatch {
		t.Fatalf("Intersect across shapes: got %v, want ErrShapeMismatch", err)
	}
}

// TestUnionCombinesMembership checks Union(a, b) answers true for keys
// inserted into either operand.
func TestUnionCombinesMembership(t *testing.T) {
	a, err := NewFilter(Config{Bits: 4096, K: 4, BlockBits: 256, Sectorized: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	b, err := NewFilter(Config{Bits: 4096, K: 4, BlockBits: 256, Sectorized: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	a.Insert(keyOf(1))
	b.Insert(keyOf(2))

	if err := a.Union(b); err != nil {
		t.Fatalf("Union: %v", err)
	}
	if !a.Contains(keyOf(1)) || !a.Contains(keyOf(2)) {
		t.Fatal("Union(a, b) must contain keys from both operands")
	}
}

// TestClearZeroesFilter checks Clear resets PopCount to zero.
func TestClearZeroesFilter(t *testing.T) {
	f, err := NewFilter(Config{Bits: 1024, K: 3, BlockBits: 64})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for i := 0; i < 50; i++ {
		f.Insert(keyOf(i))
	}
	if f.PopCount() == 0 {
		t.Fatal("expected non-zero popcount before Clear")
	}
	f.Clear()
	if f.PopCount() != 0 {
		t.Fatalf("PopCount() after Clear = %d, want 0", f.PopCount())
	}
}

// TestInsertAtomicConcurrent exercises InsertAtomic from multiple
// goroutines and checks every key is findable afterward.
func TestInsertAtomicConcurrent(t *testing.T) {
	f, err := NewFilter(Config{Bits: 1 << 16, K: 4, BlockBits: 256, Sectorized: true, Regime: addressing.Dynamic})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	const workers = 8
	const perWorker = 500
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func(w int) {
			for i := 0; i < perWorker; i++ {
				f.InsertAtomic(keyOf(w*perWorker + i))
			}
			done <- struct{}{}
		}(w)
	}
	for w := 0; w < workers; w++ {
		<-done
	}

	for i := 0; i < workers*perWorker; i++ {
		if !f.Contains(keyOf(i)) {
			t.Fatalf("key %d not found after concurrent InsertAtomic", i)
		}
	}
}

// TestInvalidConfigRejected checks construction-time validation per the
// ConfigInvalid error kind.
func TestInvalidConfigRejected(t *testing.T) {
	if _, err := NewFilter(Config{Bits: 0, K: 4, BlockBits: 64}); err == nil {
		t.Fatal("expected error for zero Bits")
	}
	if _, err := NewFilter(Config{Bits: 1024, K: 4, BlockBits: 48}); err == nil {
		t.Fatal("expected error for invalid BlockBits")
	}
	if _, err := NewFilter(Config{Bits: 1024, K: 17, BlockBits: 64}); err == nil {
		t.Fatal("expected error for k out of bounds")
	}
}

// TestStatsReflectsConfiguration checks Stats reports consistent values
// against the filter's own accessors.
func TestStatsReflectsConfiguration(t *testing.T) {
	f, err := NewFilter(Config{Bits: 4096, K: 5, BlockBits: 256, Sectorized: true, Regime: addressing.Dynamic})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for i := 0; i < 30; i++ {
		f.Insert(keyOf(i))
	}
	st := f.Stats()
	if st.Bits != f.Bits() || st.BlockCount != f.BlockCount() || st.WordCount != f.WordCount() {
		t.Fatalf("Stats() shape fields disagree with accessors: %+v", st)
	}
	if st.PopCount != f.PopCount() {
		t.Fatalf("Stats().PopCount = %d, want %d", st.PopCount, f.PopCount())
	}
	if st.K != 5 || !st.Sectorized {
		t.Fatalf("Stats() did not reflect K/Sectorized: %+v", st)
	}
}
