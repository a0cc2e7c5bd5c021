package metadata

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// HashString returns the 64-bit FNV-1a hash of s.
func HashString(s string) uint64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(s))
	return hasher.Sum64()
}

// GenerateGuid returns a new random asset identity.
func GenerateGuid() string {
	return uuid.NewString()
}

const (
	// Diffs are tracked in 4-byte words, the size of every vertex attribute
	// component and of a 32-bit index.
	rangeGrain = 4
	// Changed ranges closer than this are copied as one.
	rangeMergeGap = 16
)

/**
 * @brief Returns the ranges of next that differ from prev, aligned to 4 bytes.
 * Nearby ranges are merged. A nil result means the buffers are equal; both
 * slices must have the same length.
 */
func ChangedRanges(prev, next []byte) []BufferUpdateRange {
	if len(prev) != len(next) {
		return []BufferUpdateRange{{Offset: 0, Length: uint64(len(next))}}
	}
	var out []BufferUpdateRange
	n := len(next)
	for start := 0; start < n; start += rangeGrain {
		end := start + rangeGrain
		if end > n {
			end = n
		}
		if string(prev[start:end]) == string(next[start:end]) {
			continue
		}
		if k := len(out); k > 0 {
			last := &out[k-1]
			if uint64(start)-(last.Offset+last.Length) < rangeMergeGap {
				last.Length = uint64(end) - last.Offset
				continue
			}
		}
		out = append(out, BufferUpdateRange{Offset: uint64(start), Length: uint64(end - start)})
	}
	return out
}
