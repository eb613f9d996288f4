package limiter

import "slices"

// Whitelists are ordered sets: a sorted []KeyFilter with no duplicates.
// Keeping the invariant at every mutation lets membership checks run as
// binary searches and makes stored whitelists canonical, so two sets
// with the same filters are byte-identical once serialized.

// insertFilter adds f to the sorted set, preserving order.
func insertFilter(set []KeyFilter, f KeyFilter) ([]KeyFilter, error) {
	i, found := slices.BinarySearchFunc(set, f, KeyFilter.Compare)
	if found {
		return nil, ErrFilterExists
	}
	return slices.Insert(slices.Clone(set), i, f), nil
}

// removeFilter deletes f from the sorted set.
func removeFilter(set []KeyFilter, f KeyFilter) ([]KeyFilter, error) {
	i, found := slices.BinarySearchFunc(set, f, KeyFilter.Compare)
	if !found {
		return nil, ErrFilterNotFound
	}
	return slices.Delete(slices.Clone(set), i, i+1), nil
}

// normalizeFilters sorts a caller-supplied filter list and drops
// duplicates, producing the canonical ordered set.
func normalizeFilters(filters []KeyFilter) []KeyFilter {
	out := slices.Clone(filters)
	slices.SortFunc(out, KeyFilter.Compare)
	return slices.CompactFunc(out, func(a, b KeyFilter) bool {
		return a.Compare(b) == 0
	})
}

// matchesAny reports whether any filter in the set accepts the key.
func matchesAny(set []KeyFilter, key []byte) bool {
	for _, f := range set {
		if f.Matches(key) {
			return true
		}
	}
	return false
}
