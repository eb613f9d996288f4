package limiter

import "context"

// Store persists rules, quota state, and whitelists. Implementations
// must make each method atomic: concurrent calls for the same limiter
// and key may interleave between calls but never observe a half-applied
// mutation.
type Store interface {
	// Rule returns the stored rule for the key, or nil when none is
	// configured.
	Rule(ctx context.Context, id ID, key []byte) (*Rule, error)

	// ApplyRule stores the rule for the key, or removes it when rule is
	// nil. The key's quota state is discarded in the same atomic step,
	// so a configuration change never inherits consumption counted
	// under the previous rule.
	ApplyRule(ctx context.Context, id ID, key []byte, rule *Rule) error

	// Quota returns the stored quota state for the key. Missing state
	// is the zero QuotaState.
	Quota(ctx context.Context, id ID, key []byte) (QuotaState, error)

	// MutateQuota atomically loads the key's quota state, applies
	// mutate, stores the result, and returns it. Missing state starts
	// from the zero QuotaState.
	MutateQuota(ctx context.Context, id ID, key []byte, mutate func(*QuotaState)) (QuotaState, error)

	// Whitelist returns the limiter's bypass filters in sorted order.
	// The returned slice is the caller's to keep.
	Whitelist(ctx context.Context, id ID) ([]KeyFilter, error)

	// SetWhitelist replaces the limiter's bypass filters wholesale. An
	// empty or nil list clears the whitelist.
	SetWhitelist(ctx context.Context, id ID, filters []KeyFilter) error
}
