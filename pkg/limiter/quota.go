package limiter

// QuotaState is the persisted consumption state for one limiter key.
// LastUpdated holds ticks for block-based rules and wall seconds for
// PerSeconds rules; the zero value means no quota has been granted yet.
type QuotaState struct {
	LastUpdated uint64 `json:"last_updated"`
	Remaining   uint64 `json:"remaining"`
}

// Replenish returns the quota state after applying the rule's pending
// replenishment at the given instant. It is a pure function of its
// inputs; callers persist the result.
//
// PerBlocks and PerSeconds reset Remaining to the full quota once a
// whole interval has elapsed; partial intervals change nothing, so an
// early reader keeps the stale remainder until the boundary passes.
// TokenBucket credits one increment per completed interval and clamps
// at MaxQuota; the timestamp advances to the current tick, not the
// interval boundary, so partial progress toward the next increment is
// discarded. Non-replenishing rules return the state unchanged.
//
// Elapsed time saturates at zero when the stored timestamp is ahead of
// the clock, which freezes replenishment until the clock catches up
// rather than granting anything early.
func Replenish(rule Rule, state QuotaState, tick, unixSecs uint64) QuotaState {
	switch rule.Kind {
	case RulePerBlocks:
		if elapsed := satSub(tick, state.LastUpdated); elapsed >= rule.BlocksCount {
			state = QuotaState{LastUpdated: tick, Remaining: rule.Quota}
		}
	case RulePerSeconds:
		if elapsed := satSub(unixSecs, state.LastUpdated); elapsed >= rule.SecsCount {
			state = QuotaState{LastUpdated: unixSecs, Remaining: rule.Quota}
		}
	case RuleTokenBucket:
		elapsed := satSub(tick, state.LastUpdated)
		if rule.BlocksCount > 0 && elapsed >= rule.BlocksCount {
			increments := elapsed / rule.BlocksCount
			state.LastUpdated = tick
			state.Remaining = min(
				satAdd(satMul(rule.QuotaIncrement, increments), state.Remaining),
				rule.MaxQuota,
			)
		}
	}
	return state
}
