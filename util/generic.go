// util/generic.go

package util

import (
	"slices"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// Select returns a if sel is true and b otherwise; it is a terser
// replacement for an if-else pair.
func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	}
	return b
}

// SortedMapKeys returns the keys of the given map, sorted.
func SortedMapKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DuplicateMap returns a shallow copy of the given map.
func DuplicateMap[K comparable, V any](m map[K]V) map[K]V {
	mnew := make(map[K]V, len(m))
	for k, v := range m {
		mnew[k] = v
	}
	return mnew
}

// MapSlice returns the slice that is the result of applying the provided
// xform function to all of the elements of the given slice.
func MapSlice[F, T any](from []F, xform func(F) T) []T {
	to := make([]T, len(from))
	for i := range from {
		to[i] = xform(from[i])
	}
	return to
}

// FilterSliceInPlace removes the elements for which pred returns false,
// reusing the slice's storage.
func FilterSliceInPlace[V any](s []V, pred func(V) bool) []V {
	out := s[:0]
	for _, v := range s {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// ParallelFor applies f to each index in [0, n) across worker
// goroutines and waits for all of them. f must not touch state shared
// with other indices.
func ParallelFor(n int, f func(i int)) {
	if n <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}
	var eg errgroup.Group
	eg.SetLimit(8)
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			f(i)
			return nil
		})
	}
	_ = eg.Wait()
}
