package replay

import (
	"bytes"
	"time"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
)

// Filter defines criteria for selecting traffic records during replay.
type Filter struct {
	LimiterIDs  []string  // Only include these limiters (empty = all)
	KeyPrefixes [][]byte  // Only include keys with one of these prefixes (empty = all)
	After       time.Time // Only include records after this time (zero = no limit)
	Before      time.Time // Only include records before this time (zero = no limit)
}

// Match returns true if the record passes the filter.
func (f *Filter) Match(r recorder.TrafficRecord) bool {
	if len(f.LimiterIDs) > 0 && !contains(f.LimiterIDs, r.LimiterID) {
		return false
	}
	if len(f.KeyPrefixes) > 0 && !hasAnyPrefix(f.KeyPrefixes, r.Key) {
		return false
	}
	if !f.After.IsZero() && !r.Time.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !r.Time.Before(f.Before) {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func hasAnyPrefix(prefixes [][]byte, key []byte) bool {
	for _, p := range prefixes {
		if bytes.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
