package redis

import (
	"context"
	"testing"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/memory"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) (limiter.Store, func())
}

// TestStoreContract runs the same behavioral checks against every
// backend so the engine can treat them interchangeably.
func TestStoreContract(t *testing.T) {
	factories := []storeFactory{
		{
			name: "memory",
			new: func(t *testing.T) (limiter.Store, func()) {
				t.Helper()
				return memory.New(), func() {}
			},
		},
		{
			name: "redis",
			new: func(t *testing.T) (limiter.Store, func()) {
				t.Helper()
				s, cleanup := newRedisStoreForTest(t)
				return s, cleanup
			},
		},
	}

	for _, f := range factories {
		t.Run(f.name, func(t *testing.T) {
			store, cleanup := f.new(t)
			defer cleanup()

			contractRuleRoundTrip(t, store)
			contractApplyRuleClearsQuota(t, store)
			contractQuotaMutation(t, store)
			contractWhitelistRoundTrip(t, store)
			contractScopeIsolation(t, store)
		})
	}
}

func contractRuleRoundTrip(t *testing.T, s limiter.Store) {
	t.Helper()
	ctx := context.Background()
	key := []byte("contract-rule")

	got, err := s.Rule(ctx, "contract", key)
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	if got != nil {
		t.Fatalf("missing rule should be nil, got %v", got)
	}

	rule := limiter.PerSeconds(10, 100)
	if err := s.ApplyRule(ctx, "contract", key, &rule); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}
	got, err = s.Rule(ctx, "contract", key)
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	if got == nil || *got != rule {
		t.Fatalf("Rule() = %v, want %v", got, rule)
	}

	if err := s.ApplyRule(ctx, "contract", key, nil); err != nil {
		t.Fatalf("ApplyRule(nil) error = %v", err)
	}
	got, err = s.Rule(ctx, "contract", key)
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	if got != nil {
		t.Fatalf("removed rule should be nil, got %v", got)
	}
}

func contractApplyRuleClearsQuota(t *testing.T, s limiter.Store) {
	t.Helper()
	ctx := context.Background()
	key := []byte("contract-clear")

	rule := limiter.PerBlocks(5, 50)
	if err := s.ApplyRule(ctx, "contract", key, &rule); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}
	_, err := s.MutateQuota(ctx, "contract", key, func(q *limiter.QuotaState) {
		q.LastUpdated = 3
		q.Remaining = 17
	})
	if err != nil {
		t.Fatalf("MutateQuota() error = %v", err)
	}

	if err := s.ApplyRule(ctx, "contract", key, &rule); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}
	state, err := s.Quota(ctx, "contract", key)
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if state != (limiter.QuotaState{}) {
		t.Fatalf("quota after rule update = %+v, want zero", state)
	}
}

func contractQuotaMutation(t *testing.T, s limiter.Store) {
	t.Helper()
	ctx := context.Background()
	key := []byte("contract-quota")

	state, err := s.MutateQuota(ctx, "contract", key, func(q *limiter.QuotaState) {
		q.LastUpdated = 8
		q.Remaining = 25
	})
	if err != nil {
		t.Fatalf("MutateQuota() error = %v", err)
	}
	want := limiter.QuotaState{LastUpdated: 8, Remaining: 25}
	if state != want {
		t.Fatalf("MutateQuota() = %+v, want %+v", state, want)
	}

	read, err := s.Quota(ctx, "contract", key)
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if read != want {
		t.Fatalf("Quota() = %+v, want %+v", read, want)
	}
}

func contractWhitelistRoundTrip(t *testing.T, s limiter.Store) {
	t.Helper()
	ctx := context.Background()

	filters, err := s.Whitelist(ctx, "contract-wl")
	if err != nil {
		t.Fatalf("Whitelist() error = %v", err)
	}
	if len(filters) != 0 {
		t.Fatalf("fresh whitelist should be empty, got %v", filters)
	}

	want := []limiter.KeyFilter{
		limiter.Match([]byte("vip")),
		limiter.EndsWith([]byte(".internal")),
	}
	if err := s.SetWhitelist(ctx, "contract-wl", want); err != nil {
		t.Fatalf("SetWhitelist() error = %v", err)
	}
	filters, err = s.Whitelist(ctx, "contract-wl")
	if err != nil {
		t.Fatalf("Whitelist() error = %v", err)
	}
	if len(filters) != len(want) {
		t.Fatalf("Whitelist() returned %d filters, want %d", len(filters), len(want))
	}
	for i := range want {
		if filters[i].Compare(want[i]) != 0 {
			t.Fatalf("Whitelist()[%d] = %v, want %v", i, filters[i], want[i])
		}
	}

	if err := s.SetWhitelist(ctx, "contract-wl", nil); err != nil {
		t.Fatalf("SetWhitelist(nil) error = %v", err)
	}
	filters, err = s.Whitelist(ctx, "contract-wl")
	if err != nil {
		t.Fatalf("Whitelist() error = %v", err)
	}
	if len(filters) != 0 {
		t.Fatalf("cleared whitelist should be empty, got %v", filters)
	}
}

func contractScopeIsolation(t *testing.T, s limiter.Store) {
	t.Helper()
	ctx := context.Background()
	key := []byte("contract-shared-key")

	rule := limiter.Unlimited()
	if err := s.ApplyRule(ctx, "contract-a", key, &rule); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}

	got, err := s.Rule(ctx, "contract-b", key)
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	if got != nil {
		t.Fatalf("rule should not leak across limiters, got %v", got)
	}
}
