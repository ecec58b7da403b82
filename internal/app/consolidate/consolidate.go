// Package consolidate merges records that name the same real-world entity.
//
// Every entity kind shares one algorithm: records are visited in descending count
// order, the first record seen for a grouping key becomes the seed, and later records
// are folded into it by a pure reducer. The reducer decides whether the incoming record
// takes over the display metadata; counts and lineage always accumulate.
package consolidate

import (
	"sort"
)

// Kind describes how one entity kind is keyed and folded.
type Kind[T any] struct {
	// Key returns the grouping key of a record.
	Key func(T) string
	// Count returns the record's own play count.
	Count func(T) int
	// HasImages reports whether the record carries artwork.
	HasImages func(T) bool
	// Seed prepares the first record of a key (canonical name, lineage).
	Seed func(T) T
	// Fold returns acc with incoming merged in. takeDisplay is true when the
	// incoming record should supply display metadata. Fold must not modify acc.
	Fold func(acc, incoming T, takeDisplay bool) T
}

type entry[T any] struct {
	value        T
	displayCount int
}

// Run consolidates records that share a key.
// records must already be sorted by descending count; that order picks the seed of
// every key and breaks ties in the output.
func Run[T any](records []T, kind Kind[T]) []T {
	entries := make([]entry[T], 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		key := kind.Key(r)
		pos, ok := index[key]
		if !ok {
			index[key] = len(entries)
			entries = append(entries, entry[T]{
				value:        kind.Seed(r),
				displayCount: kind.Count(r),
			})
			continue
		}

		e := &entries[pos]
		own := kind.Count(r)
		takeDisplay := own > e.displayCount || (!kind.HasImages(e.value) && kind.HasImages(r))
		e.value = kind.Fold(e.value, r, takeDisplay)
		if takeDisplay && own > e.displayCount {
			e.displayCount = own
		}
	}

	out := make([]T, len(entries))
	for i := range entries {
		out[i] = entries[i].value
	}
	sort.SliceStable(out, func(i, j int) bool {
		return kind.Count(out[i]) > kind.Count(out[j])
	})
	return out
}

// SortByCount orders records by descending count, keeping input order for ties.
func SortByCount[T any](records []T, count func(T) int) {
	sort.SliceStable(records, func(i, j int) bool {
		return count(records[i]) > count(records[j])
	})
}

// appendLineage returns a fresh slice holding acc followed by incoming.
func appendLineage(acc, incoming []string) []string {
	out := make([]string, 0, len(acc)+len(incoming))
	out = append(out, acc...)
	return append(out, incoming...)
}

// seedLineage returns ids, or a single-element lineage of id when ids is empty.
func seedLineage(ids []string, id string) []string {
	if len(ids) > 0 {
		return append([]string(nil), ids...)
	}
	if id == "" {
		return []string{}
	}
	return []string{id}
}

// seedConsolidated returns consolidated, or count for records never consolidated before.
func seedConsolidated(consolidated, count int) int {
	if consolidated == 0 {
		return count
	}
	return consolidated
}

// pick returns the display owner's value, or the other record's when the
// owner's is empty. A populated field is never replaced by an empty one.
func pick[V comparable](takeDisplay bool, acc, in V) V {
	var zero V
	if takeDisplay {
		acc, in = in, acc
	}
	if acc != zero {
		return acc
	}
	return in
}

// pickSlice is pick for slices.
func pickSlice[E any](takeDisplay bool, acc, in []E) []E {
	if takeDisplay {
		acc, in = in, acc
	}
	if len(acc) > 0 {
		return acc
	}
	return in
}

// pickMap is pick for maps.
func pickMap[K comparable, V any](takeDisplay bool, acc, in map[K]V) map[K]V {
	if takeDisplay {
		acc, in = in, acc
	}
	if len(acc) > 0 {
		return acc
	}
	return in
}

// preferImages keeps existing artwork unless incoming has some.
func preferImages[I any](existing, incoming []I) []I {
	if len(incoming) > 0 {
		return incoming
	}
	return existing
}
