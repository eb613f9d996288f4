package limiter

import "fmt"

// RuleKind identifies a rate limit rule variant.
type RuleKind string

const (
	// RulePerBlocks grants a fixed quota each time blocks_count ticks
	// have elapsed since the last update.
	RulePerBlocks RuleKind = "per_blocks"
	// RulePerSeconds grants a fixed quota each time secs_count wall
	// seconds have elapsed since the last update.
	RulePerSeconds RuleKind = "per_seconds"
	// RuleTokenBucket adds quota_increment per completed blocks_count
	// interval, capped at max_quota.
	RuleTokenBucket RuleKind = "token_bucket"
	// RuleUnlimited allows everything.
	RuleUnlimited RuleKind = "unlimited"
	// RuleNotAllowed denies everything, including zero-valued requests.
	RuleNotAllowed RuleKind = "not_allowed"
)

// Rule describes how quota replenishes for one limiter key. The Kind
// field selects the variant; only the parameters belonging to that
// variant are meaningful.
type Rule struct {
	Kind RuleKind `json:"kind" yaml:"kind"`

	// BlocksCount is the replenish interval in ticks for PerBlocks and
	// TokenBucket rules.
	BlocksCount uint64 `json:"blocks_count,omitempty" yaml:"blocks_count,omitempty"`
	// SecsCount is the replenish interval in wall seconds for
	// PerSeconds rules.
	SecsCount uint64 `json:"secs_count,omitempty" yaml:"secs_count,omitempty"`
	// Quota is the amount granted per interval for PerBlocks and
	// PerSeconds rules.
	Quota uint64 `json:"quota,omitempty" yaml:"quota,omitempty"`
	// QuotaIncrement is the amount added per interval for TokenBucket
	// rules.
	QuotaIncrement uint64 `json:"quota_increment,omitempty" yaml:"quota_increment,omitempty"`
	// MaxQuota caps the accumulated quota for TokenBucket rules.
	MaxQuota uint64 `json:"max_quota,omitempty" yaml:"max_quota,omitempty"`
}

// PerBlocks creates a rule granting quota once per blocksCount ticks.
func PerBlocks(blocksCount, quota uint64) Rule {
	return Rule{Kind: RulePerBlocks, BlocksCount: blocksCount, Quota: quota}
}

// PerSeconds creates a rule granting quota once per secsCount seconds.
func PerSeconds(secsCount, quota uint64) Rule {
	return Rule{Kind: RulePerSeconds, SecsCount: secsCount, Quota: quota}
}

// TokenBucket creates a rule adding quotaIncrement per blocksCount
// ticks, accumulating up to maxQuota.
func TokenBucket(blocksCount, quotaIncrement, maxQuota uint64) Rule {
	return Rule{
		Kind:           RuleTokenBucket,
		BlocksCount:    blocksCount,
		QuotaIncrement: quotaIncrement,
		MaxQuota:       maxQuota,
	}
}

// Unlimited creates a rule that allows every request.
func Unlimited() Rule {
	return Rule{Kind: RuleUnlimited}
}

// NotAllowed creates a rule that denies every request.
func NotAllowed() Rule {
	return Rule{Kind: RuleNotAllowed}
}

// Validate reports whether the rule's parameters are usable. Zero
// intervals and zero grants are rejected: they would divide by zero or
// produce a limiter that never replenishes.
func (r Rule) Validate() error {
	switch r.Kind {
	case RulePerBlocks:
		if r.BlocksCount == 0 || r.Quota == 0 {
			return fmt.Errorf("%w: per_blocks requires nonzero blocks_count and quota", ErrInvalidRule)
		}
	case RulePerSeconds:
		if r.SecsCount == 0 || r.Quota == 0 {
			return fmt.Errorf("%w: per_seconds requires nonzero secs_count and quota", ErrInvalidRule)
		}
	case RuleTokenBucket:
		if r.BlocksCount == 0 || r.QuotaIncrement == 0 || r.MaxQuota == 0 {
			return fmt.Errorf("%w: token_bucket requires nonzero blocks_count, quota_increment, and max_quota", ErrInvalidRule)
		}
	case RuleUnlimited, RuleNotAllowed:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}
	return nil
}

// Replenishes reports whether the rule tracks quota state. Unlimited
// and NotAllowed rules decide without consulting storage.
func (r Rule) Replenishes() bool {
	switch r.Kind {
	case RulePerBlocks, RulePerSeconds, RuleTokenBucket:
		return true
	}
	return false
}

func (r Rule) String() string {
	switch r.Kind {
	case RulePerBlocks:
		return fmt.Sprintf("per_blocks{blocks_count: %d, quota: %d}", r.BlocksCount, r.Quota)
	case RulePerSeconds:
		return fmt.Sprintf("per_seconds{secs_count: %d, quota: %d}", r.SecsCount, r.Quota)
	case RuleTokenBucket:
		return fmt.Sprintf("token_bucket{blocks_count: %d, quota_increment: %d, max_quota: %d}",
			r.BlocksCount, r.QuotaIncrement, r.MaxQuota)
	case RuleUnlimited:
		return "unlimited"
	case RuleNotAllowed:
		return "not_allowed"
	}
	return fmt.Sprintf("unknown(%q)", string(r.Kind))
}
