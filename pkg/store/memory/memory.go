package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Store is an in-memory limiter.Store backed by maps, for tests,
// offline replay, and single-process deployments.
// Thread-safe for concurrent use; one mutex guards all state, which
// makes every method trivially atomic.
type Store struct {
	mu         sync.Mutex
	rules      map[entryKey]limiter.Rule
	quotas     map[entryKey]limiter.QuotaState
	whitelists map[limiter.ID][]limiter.KeyFilter
}

type entryKey struct {
	id  limiter.ID
	key string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rules:      make(map[entryKey]limiter.Rule),
		quotas:     make(map[entryKey]limiter.QuotaState),
		whitelists: make(map[limiter.ID][]limiter.KeyFilter),
	}
}

var _ limiter.Store = (*Store)(nil)

func (s *Store) Rule(_ context.Context, id limiter.ID, key []byte) (*limiter.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[entryKey{id, string(key)}]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent mutation.
	out := rule
	return &out, nil
}

func (s *Store) ApplyRule(_ context.Context, id limiter.ID, key []byte, rule *limiter.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ek := entryKey{id, string(key)}
	if rule == nil {
		delete(s.rules, ek)
	} else {
		s.rules[ek] = *rule
	}
	delete(s.quotas, ek)
	return nil
}

func (s *Store) Quota(_ context.Context, id limiter.ID, key []byte) (limiter.QuotaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.quotas[entryKey{id, string(key)}], nil
}

func (s *Store) MutateQuota(_ context.Context, id limiter.ID, key []byte, mutate func(*limiter.QuotaState)) (limiter.QuotaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ek := entryKey{id, string(key)}
	state := s.quotas[ek]
	mutate(&state)
	s.quotas[ek] = state
	return state, nil
}

func (s *Store) Whitelist(_ context.Context, id limiter.ID) ([]limiter.KeyFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneFilters(s.whitelists[id]), nil
}

func (s *Store) SetWhitelist(_ context.Context, id limiter.ID, filters []limiter.KeyFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(filters) == 0 {
		delete(s.whitelists, id)
		return nil
	}
	s.whitelists[id] = cloneFilters(filters)
	return nil
}

// RuleCount returns the number of configured rules across all limiters.
func (s *Store) RuleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rules)
}

func cloneFilters(filters []limiter.KeyFilter) []limiter.KeyFilter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]limiter.KeyFilter, len(filters))
	for i, f := range filters {
		out[i] = limiter.KeyFilter{Kind: f.Kind, Pattern: slices.Clone(f.Pattern)}
	}
	return out
}
