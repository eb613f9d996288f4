package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
)

// DefaultMaxWhitelistFilters caps each limiter's whitelist unless
// overridden with WithMaxWhitelistFilters.
const DefaultMaxWhitelistFilters = 32

// Engine evaluates admission against stored rules and quota state.
// Replenishment is computed lazily: quota is topped up when a key is
// checked, not on a timer, so idle keys cost nothing.
//
// Runtime methods are safe for concurrent use; atomicity of each quota
// update is delegated to the Store. Administrative mutations are
// serialized against each other within the process.
type Engine struct {
	store      Store
	clock      clock.Clock
	log        *zap.Logger
	notify     Notifier
	maxFilters int

	adminMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards logs.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithNotifier sets the receiver for administrative events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notify = n
	}
}

// WithMaxWhitelistFilters overrides the per-limiter whitelist capacity.
func WithMaxWhitelistFilters(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFilters = n
		}
	}
}

// New creates an Engine backed by the given store and clock.
func New(store Store, clk clock.Clock, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("limiter: store is required")
	}
	if clk == nil {
		return nil, errors.New("limiter: clock is required")
	}
	e := &Engine{
		store:      store,
		clock:      clk,
		log:        zap.NewNop(),
		maxFilters: DefaultMaxWhitelistFilters,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var _ RateLimiter = (*Engine)(nil)

// BypassLimit reports whether the key matches the limiter's whitelist.
func (e *Engine) BypassLimit(ctx context.Context, id ID, key []byte) (bool, error) {
	filters, err := e.store.Whitelist(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load whitelist: %w", err)
	}
	return matchesAny(filters, key), nil
}

// IsAllowed reports whether amount can be spent for the key. Pending
// replenishment is applied and persisted first, then the amount is
// compared against the remaining quota. Nothing is consumed; a nil
// error means the caller may proceed and should Record afterwards.
//
// Keys without a rule are unmanaged and always allowed. A NotAllowed
// rule denies every request, including amount zero.
func (e *Engine) IsAllowed(ctx context.Context, id ID, key []byte, amount uint64) error {
	rule, err := e.store.Rule(ctx, id, key)
	if err != nil {
		return fmt.Errorf("load rule: %w", err)
	}
	if rule == nil {
		return nil
	}
	switch rule.Kind {
	case RuleUnlimited:
		return nil
	case RuleNotAllowed:
		return ErrExceedLimit
	}

	tick, secs := e.clock.Tick(), e.clock.Unix()
	state, err := e.store.MutateQuota(ctx, id, key, func(st *QuotaState) {
		*st = Replenish(*rule, *st, tick, secs)
	})
	if err != nil {
		return fmt.Errorf("replenish quota: %w", err)
	}
	if amount > state.Remaining {
		e.log.Debug("request denied",
			zap.String("limiter", string(id)),
			zap.Binary("key", key),
			zap.Uint64("amount", amount),
			zap.Uint64("remaining", state.Remaining))
		return ErrExceedLimit
	}
	return nil
}

// Record consumes amount from the key's remaining quota, saturating at
// zero. It never replenishes: the deduction applies to whatever
// remainder the preceding IsAllowed left behind. Keys without a
// quota-tracking rule are untouched.
func (e *Engine) Record(ctx context.Context, id ID, key []byte, amount uint64) error {
	rule, err := e.store.Rule(ctx, id, key)
	if err != nil {
		return fmt.Errorf("load rule: %w", err)
	}
	if rule == nil || !rule.Replenishes() {
		return nil
	}
	if _, err := e.store.MutateQuota(ctx, id, key, func(st *QuotaState) {
		st.Remaining = satSub(st.Remaining, amount)
	}); err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	return nil
}

// Rule returns the stored rule for the key, or nil when none is set.
func (e *Engine) Rule(ctx context.Context, id ID, key []byte) (*Rule, error) {
	return e.store.Rule(ctx, id, key)
}

// Quota returns the stored quota state for the key as-is, without
// applying pending replenishment.
func (e *Engine) Quota(ctx context.Context, id ID, key []byte) (QuotaState, error) {
	return e.store.Quota(ctx, id, key)
}

// PreviewQuota returns the quota state the key would hold once pending
// replenishment is applied, without persisting anything. The boolean
// reports whether the key has a quota-tracking rule at all.
func (e *Engine) PreviewQuota(ctx context.Context, id ID, key []byte) (QuotaState, bool, error) {
	rule, err := e.store.Rule(ctx, id, key)
	if err != nil {
		return QuotaState{}, false, fmt.Errorf("load rule: %w", err)
	}
	if rule == nil || !rule.Replenishes() {
		return QuotaState{}, false, nil
	}
	state, err := e.store.Quota(ctx, id, key)
	if err != nil {
		return QuotaState{}, false, fmt.Errorf("load quota: %w", err)
	}
	return Replenish(*rule, state, e.clock.Tick(), e.clock.Unix()), true, nil
}

// Whitelist returns the limiter's bypass filters in sorted order.
func (e *Engine) Whitelist(ctx context.Context, id ID) ([]KeyFilter, error) {
	return e.store.Whitelist(ctx, id)
}

// UpdateRule stores a new rule for the key, or removes it when rule is
// nil. The key's quota state is discarded in the same step, even when
// the new rule equals the old one, so the key restarts from zero and
// replenishes fresh on its next check.
func (e *Engine) UpdateRule(ctx context.Context, id ID, key []byte, rule *Rule) error {
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	if err := e.store.ApplyRule(ctx, id, key, rule); err != nil {
		return fmt.Errorf("apply rule: %w", err)
	}
	e.log.Info("rate limit rule updated",
		zap.String("limiter", string(id)),
		zap.Binary("key", key),
		zap.String("rule", ruleLabel(rule)))
	ev := Event{Kind: EventRuleUpdated, LimiterID: id, Key: key}
	if rule != nil {
		r := *rule
		ev.Rule = &r
	}
	e.emit(ev)
	return nil
}

// AddWhitelist inserts one filter into the limiter's whitelist. It
// fails with ErrFilterExists when the filter is already present and
// ErrTooManyFilters when the whitelist is full.
func (e *Engine) AddWhitelist(ctx context.Context, id ID, filter KeyFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	filters, err := e.store.Whitelist(ctx, id)
	if err != nil {
		return fmt.Errorf("load whitelist: %w", err)
	}
	updated, err := insertFilter(filters, filter)
	if err != nil {
		return err
	}
	if len(updated) > e.maxFilters {
		return ErrTooManyFilters
	}
	if err := e.store.SetWhitelist(ctx, id, updated); err != nil {
		return fmt.Errorf("store whitelist: %w", err)
	}
	e.log.Info("whitelist filter added",
		zap.String("limiter", string(id)),
		zap.String("filter", filter.String()))
	e.emit(Event{Kind: EventWhitelistAdded, LimiterID: id, Filter: &filter})
	return nil
}

// RemoveWhitelist deletes one filter from the limiter's whitelist,
// failing with ErrFilterNotFound when it is not present.
func (e *Engine) RemoveWhitelist(ctx context.Context, id ID, filter KeyFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	filters, err := e.store.Whitelist(ctx, id)
	if err != nil {
		return fmt.Errorf("load whitelist: %w", err)
	}
	updated, err := removeFilter(filters, filter)
	if err != nil {
		return err
	}
	if err := e.store.SetWhitelist(ctx, id, updated); err != nil {
		return fmt.Errorf("store whitelist: %w", err)
	}
	e.log.Info("whitelist filter removed",
		zap.String("limiter", string(id)),
		zap.String("filter", filter.String()))
	e.emit(Event{Kind: EventWhitelistRemoved, LimiterID: id, Filter: &filter})
	return nil
}

// ResetWhitelist replaces the limiter's whitelist wholesale. The list
// is sorted and deduplicated before storing; capacity is checked
// against the list as given.
func (e *Engine) ResetWhitelist(ctx context.Context, id ID, filters []KeyFilter) error {
	if len(filters) > e.maxFilters {
		return ErrTooManyFilters
	}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	normalized := normalizeFilters(filters)
	if err := e.store.SetWhitelist(ctx, id, normalized); err != nil {
		return fmt.Errorf("store whitelist: %w", err)
	}
	e.log.Info("whitelist reset",
		zap.String("limiter", string(id)),
		zap.Int("filters", len(normalized)))
	e.emit(Event{Kind: EventWhitelistReset, LimiterID: id, Filters: normalized})
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.notify == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Time = e.clock.Now()
	e.notify.Notify(ev)
}

func ruleLabel(r *Rule) string {
	if r == nil {
		return "removed"
	}
	return r.String()
}
