// Package shuffle produces uniformly random permutations without touching
// the caller's slice.
package shuffle

import "math/rand/v2"

// Slice returns a shuffled copy of in using the global random source.
func Slice[T any](in []T) []T {
	return SliceWith(nil, in)
}

// SliceWith returns a shuffled copy of in drawing from r, or from the
// global source when r is nil. It runs a single Fisher-Yates pass over the
// copy. For len(in) <= 1 the result equals the input.
func SliceWith[T any](r *rand.Rand, in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)

	for i := len(out) - 1; i > 0; i-- {
		var j int
		if r != nil {
			j = r.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}
