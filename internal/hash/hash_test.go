package hash

import "testing"

// TestHashDeterministic verifies Hash is a pure function of (key, seed).
func TestHashDeterministic(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		seed  uint32
	}{
		{"empty input", []byte{}, 0},
		{"single byte", []byte{42}, 0},
		{"small input", []byte{1, 2, 3, 4, 5}, 3},
		{"large input", make([]byte, 256), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := Default.Hash(tt.input, tt.seed)
			h2 := Default.Hash(tt.input, tt.seed)
			if h1 != h2 {
				t.Errorf("Hash is not deterministic: got %v and %v", h1, h2)
			}
		})
	}
}

// TestHashSeedIndependence verifies distinct seeds produce distinct hashes
// for the same key, as the Hasher contract requires.
func TestHashSeedIndependence(t *testing.T) {
	key := []byte("the quick brown fox jumps over the lazy dog")

	seen := make(map[uint32]uint32)
	for seed := uint32(0); seed < 16; seed++ {
		h := Default.Hash(key, seed)
		if prevSeed, exists := seen[h]; exists {
			t.Errorf("seeds %d and %d collided on hash %v", prevSeed, seed, h)
		}
		seen[h] = seed
	}
}

// TestHashVecAgreesWithScalar checks the batch entry point matches
// repeated scalar calls lane by lane.
func TestHashVecAgreesWithScalar(t *testing.T) {
	keys := [][]byte{
		[]byte("a"), []byte("bb"), []byte("ccc"), []byte("dddd"),
		[]byte("eeeee"), []byte("ffffff"), []byte("g"), []byte(""),
	}
	out := make([]uint32, len(keys))
	Default.HashVec(keys, 5, out)

	for i, k := range keys {
		want := Default.Hash(k, 5)
		if out[i] != want {
			t.Errorf("lane %d: HashVec=%v scalar=%v", i, out[i], want)
		}
	}
}

// TestTagNeverZero verifies the cuckoo fingerprint avoids the empty-slot
// sentinel value.
func TestTagNeverZero(t *testing.T) {
	for i := 0; i < 10000; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
		if tag := Tag(key); tag == 0 {
			t.Fatalf("Tag(%v) returned 0 (reserved empty-slot sentinel)", key)
		}
	}
}

// TestPartialTagRoundTrip verifies the XOR-based alternate bucket index is
// its own inverse: i1 = i2 ^ PartialTag(tag) when i2 = i1 ^ PartialTag(tag).
func TestPartialTagRoundTrip(t *testing.T) {
	for tag := uint16(1); tag < 2000; tag += 7 {
		delta := PartialTag(tag)
		i1 := uint32(12345) & 0xFF
		i2 := i1 ^ delta
		got := i2 ^ delta
		if got != i1 {
			t.Errorf("tag %d: round trip failed, i1=%d i2=%d recovered=%d", tag, i1, i2, got)
		}
	}
}
