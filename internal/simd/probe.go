package simd

// Lanes is the lane-vector width the batch-probe pipeline processes a key
// batch in, modeled after a 256-bit vector register holding eight 32-bit
// lanes. A caller's batch of any size is tiled into chunks of Lanes (the
// final chunk may be partial).
const Lanes = 8

// GatherMasked reads words[idx[i]] into out[i] for every lane i where
// execMask[i] is true. Lanes outside the mask are forced to word index 0
// rather than left at idx[i], since idx[i] for a suppressed lane may be
// stale or out of range from an earlier round — this is the "masked
// gather" contract from the batch-probe state machine: a real vector
// gather instruction would need a safe substitute index on inactive lanes
// to avoid faulting, and this keeps that same shape even though no actual
// hardware gather is issued.
func GatherMasked(words []uint64, idx []uint32, execMask []bool, out []uint64) {
	for i, active := range execMask {
		if active {
			out[i] = words[idx[i]]
		} else {
			out[i] = words[0]
		}
	}
}

// AndInto ANDs src into mask lane-wise: mask[i] = mask[i] && src[i].
func AndInto(mask, src []bool) {
	for i := range mask {
		mask[i] = mask[i] && src[i]
	}
}

// AnyActive reports whether any lane of mask is true, i.e. whether
// exec_mask != 0.
func AnyActive(mask []bool) bool {
	for _, v := range mask {
		if v {
			return true
		}
	}
	return false
}
