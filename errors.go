package bloomfilter

import "errors"

// ErrInvalidConfig is returned by NewFilter/NewStandardFilter when the
// requested configuration is internally inconsistent: a bit length of
// zero, a bit length exceeding the addressing scheme's max_m, k outside
// [1, 16], a block width other than the supported set, or a configuration
// that would need more than 32 bits of hash entropy.
var ErrInvalidConfig = errors.New("bloomfilter: invalid configuration")

// ErrShapeMismatch is returned by Union/Intersect when the two filters do
// not have the same word count, matching the teacher's panic-on-mismatch
// contract downgraded to an error for these two entry points (the bulk
// in-place operations, InsertAtomic aside, still panic, to stay on the
// teacher's hot-path convention).
var ErrShapeMismatch = errors.New("bloomfilter: operand filters have different shapes")
