// Package limiter implements a quota-based rate limiting engine.
// Admission is keyed two levels deep: a limiter ID names an independent
// domain with its own bypass whitelist, and an encoded key selects one
// subject inside it. Each key carries a replenishment rule and the
// quota state accumulated under it.
package limiter

import "context"

// ID names one rate limiting domain. Domains are fully independent:
// rules, quota state, and the bypass whitelist are all scoped to an ID.
type ID string

// RateLimiter is the admission surface consulted on the request path.
// The intended call sequence for a guarded operation is: BypassLimit,
// and if the key is not whitelisted, IsAllowed followed by Record once
// the operation succeeds. Keeping the check and the consumption as two
// calls lets callers probe without spending quota and skip Record when
// the guarded work fails.
type RateLimiter interface {
	// BypassLimit reports whether the key matches the limiter's
	// whitelist and may skip admission entirely.
	BypassLimit(ctx context.Context, id ID, key []byte) (bool, error)

	// IsAllowed reports whether amount can be spent for the key. It
	// returns nil when allowed, ErrExceedLimit when denied, and any
	// other error when storage failed. No quota is consumed.
	IsAllowed(ctx context.Context, id ID, key []byte, amount uint64) error

	// Record consumes amount from the key's remaining quota,
	// saturating at zero. It never replenishes and never fails a
	// request; callers invoke it only after IsAllowed approved.
	Record(ctx context.Context, id ID, key []byte, amount uint64) error
}
