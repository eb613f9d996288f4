package limiter

import (
	"bytes"
	"fmt"
)

// FilterKind identifies a key filter variant.
type FilterKind string

const (
	FilterMatch      FilterKind = "match"
	FilterStartsWith FilterKind = "starts_with"
	FilterEndsWith   FilterKind = "ends_with"
)

// filterRank orders filter kinds for the whitelist's sorted set:
// exact matches first, then prefixes, then suffixes.
func filterRank(k FilterKind) int {
	switch k {
	case FilterMatch:
		return 0
	case FilterStartsWith:
		return 1
	case FilterEndsWith:
		return 2
	}
	return 3
}

// KeyFilter matches encoded keys against a byte pattern. Filters are
// value types; two filters are the same whitelist entry exactly when
// kind and pattern are equal.
type KeyFilter struct {
	Kind    FilterKind `json:"kind"`
	Pattern []byte     `json:"pattern"`
}

// Match creates a filter matching keys byte-for-byte equal to pattern.
func Match(pattern []byte) KeyFilter {
	return KeyFilter{Kind: FilterMatch, Pattern: pattern}
}

// StartsWith creates a filter matching keys with the given prefix.
func StartsWith(prefix []byte) KeyFilter {
	return KeyFilter{Kind: FilterStartsWith, Pattern: prefix}
}

// EndsWith creates a filter matching keys with the given suffix.
func EndsWith(suffix []byte) KeyFilter {
	return KeyFilter{Kind: FilterEndsWith, Pattern: suffix}
}

// Matches reports whether the filter accepts the encoded key. An empty
// pattern matches every key for all three kinds.
func (f KeyFilter) Matches(key []byte) bool {
	switch f.Kind {
	case FilterMatch:
		return bytes.Equal(key, f.Pattern)
	case FilterStartsWith:
		return bytes.HasPrefix(key, f.Pattern)
	case FilterEndsWith:
		return bytes.HasSuffix(key, f.Pattern)
	}
	return false
}

// Compare orders filters by kind, then lexically by pattern. The
// whitelist keeps its entries sorted under this order so membership
// checks can binary search.
func (f KeyFilter) Compare(other KeyFilter) int {
	if d := filterRank(f.Kind) - filterRank(other.Kind); d != 0 {
		return d
	}
	return bytes.Compare(f.Pattern, other.Pattern)
}

// Validate rejects filters with an unknown kind.
func (f KeyFilter) Validate() error {
	switch f.Kind {
	case FilterMatch, FilterStartsWith, FilterEndsWith:
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, f.Kind)
}

func (f KeyFilter) String() string {
	return fmt.Sprintf("%s(%q)", string(f.Kind), f.Pattern)
}
