package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/memory"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scenarioEngine builds the same environment the test command does: a
// manual clock advanced past the first replenish interval and an engine
// with the rule installed for every key under the "test" limiter.
func scenarioEngine(t *testing.T, rule limiter.Rule, keys []string) (*limiter.Engine, *clock.Manual) {
	t.Helper()

	clk := clock.NewManual(epoch)
	eng, err := limiter.New(memory.New(), clk)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range keys {
		if err := eng.UpdateRule(context.Background(), "test", []byte(key), &rule); err != nil {
			t.Fatalf("UpdateRule(%s) error = %v", key, err)
		}
	}
	clk.AdvanceTicks(rule.BlocksCount)
	clk.Advance(time.Duration(rule.SecsCount) * time.Second)
	return eng, clk
}

func TestRunScenario_TokenBucket(t *testing.T) {
	rule := limiter.TokenBucket(5, 10, 30)
	eng, clk := scenarioEngine(t, rule, []string{"user1"})

	result, err := runScenario(context.Background(), eng, clk, rule, []string{"user1"}, 15, 1, 0, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	if len(result.Batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(result.Batches))
	}
	if got := result.Batches[0].Tick; got != 5 {
		t.Errorf("batch tick = %d, want 5", got)
	}

	s := result.Summary["user1"]
	if s.TotalRequests != 15 {
		t.Errorf("total requests = %d, want 15", s.TotalRequests)
	}
	if s.Allowed != 10 {
		t.Errorf("allowed = %d, want 10", s.Allowed)
	}
	if s.Denied != 5 {
		t.Errorf("denied = %d, want 5", s.Denied)
	}

	// The first grant matures one interval in, so the opening request
	// sees a full increment minus its own spend.
	first := result.Batches[0].Decisions[0]
	if first.Outcome != "allowed" {
		t.Errorf("first outcome = %q, want allowed", first.Outcome)
	}
	if first.Remaining == nil || *first.Remaining != 9 {
		t.Errorf("first remaining = %v, want 9", first.Remaining)
	}
}

func TestRunScenario_FastForwardRefills(t *testing.T) {
	rule := limiter.TokenBucket(5, 10, 30)
	eng, clk := scenarioEngine(t, rule, []string{"user1"})

	result, err := runScenario(context.Background(), eng, clk, rule, []string{"user1"}, 12, 1, 5, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	if len(result.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(result.Batches))
	}
	if result.FastForward != "5 ticks" {
		t.Errorf("fast_forward = %q, want %q", result.FastForward, "5 ticks")
	}

	// Batch 1: 10 allowed, 2 denied. Five ticks later one increment has
	// matured, so batch 2 repeats the same split.
	s := result.Summary["user1"]
	if s.Allowed != 20 {
		t.Errorf("total allowed = %d, want 20", s.Allowed)
	}
	if s.Denied != 4 {
		t.Errorf("total denied = %d, want 4", s.Denied)
	}
}

func TestRunScenario_PerSecondsResets(t *testing.T) {
	rule := limiter.PerSeconds(10, 5)
	eng, clk := scenarioEngine(t, rule, []string{"user1"})

	result, err := runScenario(context.Background(), eng, clk, rule, []string{"user1"}, 8, 1, 0, 10*time.Second)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	if result.FastForward != "10s" {
		t.Errorf("fast_forward = %q, want %q", result.FastForward, "10s")
	}

	// Each batch grants the full quota of 5: the reset interval elapses
	// before batch 1 and again during the fast-forward.
	s := result.Summary["user1"]
	if s.Allowed != 10 {
		t.Errorf("total allowed = %d, want 10", s.Allowed)
	}
	if s.Denied != 6 {
		t.Errorf("total denied = %d, want 6", s.Denied)
	}
}

func TestRunScenario_MultipleKeys(t *testing.T) {
	rule := limiter.PerBlocks(4, 3)
	keys := []string{"user1", "user2"}
	eng, clk := scenarioEngine(t, rule, keys)

	result, err := runScenario(context.Background(), eng, clk, rule, keys, 5, 1, 0, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	for _, key := range keys {
		s := result.Summary[key]
		if s.TotalRequests != 5 {
			t.Errorf("%s: total = %d, want 5", key, s.TotalRequests)
		}
		if s.Allowed != 3 {
			t.Errorf("%s: allowed = %d, want 3", key, s.Allowed)
		}
		if s.Denied != 2 {
			t.Errorf("%s: denied = %d, want 2", key, s.Denied)
		}
	}
}

func TestRunScenario_WhitelistBypass(t *testing.T) {
	rule := limiter.TokenBucket(5, 10, 30)
	keys := []string{"vip", "user2"}
	eng, clk := scenarioEngine(t, rule, keys)

	if err := eng.AddWhitelist(context.Background(), "test", limiter.Match([]byte("vip"))); err != nil {
		t.Fatalf("AddWhitelist() error = %v", err)
	}

	result, err := runScenario(context.Background(), eng, clk, rule, keys, 4, 1, 0, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	vip := result.Summary["vip"]
	if vip.Bypassed != 4 || vip.Allowed != 0 {
		t.Errorf("vip: bypassed = %d, allowed = %d, want 4 and 0", vip.Bypassed, vip.Allowed)
	}
	other := result.Summary["user2"]
	if other.Allowed != 4 {
		t.Errorf("user2: allowed = %d, want 4", other.Allowed)
	}

	first := result.Batches[0].Decisions[0]
	if first.Outcome != "bypassed" {
		t.Errorf("first outcome = %q, want bypassed", first.Outcome)
	}
	if first.Remaining != nil {
		t.Errorf("bypassed decision carries remaining = %d, want none", *first.Remaining)
	}
}

func TestRunScenario_NotAllowed(t *testing.T) {
	rule := limiter.NotAllowed()
	eng, clk := scenarioEngine(t, rule, []string{"user1"})

	result, err := runScenario(context.Background(), eng, clk, rule, []string{"user1"}, 3, 1, 0, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	s := result.Summary["user1"]
	if s.Denied != 3 {
		t.Errorf("denied = %d, want 3", s.Denied)
	}
	if got := result.Batches[0].Decisions[0].Remaining; got != nil {
		t.Errorf("not_allowed decision carries remaining = %d, want none", *got)
	}
}

func TestRunScenario_Unlimited(t *testing.T) {
	rule := limiter.Unlimited()
	eng, clk := scenarioEngine(t, rule, []string{"user1"})

	result, err := runScenario(context.Background(), eng, clk, rule, []string{"user1"}, 5, 1, 0, 0)
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}

	s := result.Summary["user1"]
	if s.Allowed != 5 {
		t.Errorf("allowed = %d, want 5", s.Allowed)
	}
	if got := result.Batches[0].Decisions[0].Remaining; got != nil {
		t.Errorf("unlimited decision carries remaining = %d, want none", *got)
	}
}

func runTestCmd(t *testing.T, args ...string) TestResult {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}

	var result TestResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("unmarshaling output: %v\n%s", err, buf.String())
	}
	return result
}

func TestNewTestCmd_Defaults(t *testing.T) {
	result := runTestCmd(t, "test", "--requests", "15", "--json")

	if result.Rule.Kind != limiter.RuleTokenBucket {
		t.Errorf("rule kind = %q, want token_bucket", result.Rule.Kind)
	}
	s := result.Summary["test-user"]
	if s.Allowed != 10 {
		t.Errorf("allowed = %d, want 10", s.Allowed)
	}
	if s.Denied != 5 {
		t.Errorf("denied = %d, want 5", s.Denied)
	}
}

func TestNewTestCmd_AllKinds(t *testing.T) {
	cases := map[string][]string{
		"token_bucket": {"test", "--requests", "3", "--json"},
		"per_blocks":   {"test", "--kind", "per_blocks", "--blocks-count", "2", "--quota", "5", "--requests", "3", "--json"},
		"per_seconds":  {"test", "--kind", "per_seconds", "--secs-count", "10", "--quota", "5", "--requests", "3", "--json"},
		"unlimited":    {"test", "--kind", "unlimited", "--requests", "3", "--json"},
		"not_allowed":  {"test", "--kind", "not_allowed", "--requests", "3", "--json"},
	}
	for kind, args := range cases {
		t.Run(kind, func(t *testing.T) {
			result := runTestCmd(t, args...)
			if got := result.Summary["test-user"].TotalRequests; got != 3 {
				t.Errorf("total requests = %d, want 3", got)
			}
		})
	}
}

func TestNewTestCmd_FastForwardTicks(t *testing.T) {
	result := runTestCmd(t, "test", "--requests", "12", "--fast-forward-ticks", "5", "--json")

	if len(result.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(result.Batches))
	}
	if result.FastForward != "5 ticks" {
		t.Errorf("fast_forward = %q, want %q", result.FastForward, "5 ticks")
	}
	s := result.Summary["test-user"]
	if s.Allowed != 20 || s.Denied != 4 {
		t.Errorf("allowed/denied = %d/%d, want 20/4", s.Allowed, s.Denied)
	}
}

func TestNewTestCmd_InvalidKind(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"test", "--kind", "bogus"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown rule kind")
	}
}

func TestNewTestCmd_InvalidRule(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"test", "--kind", "per_blocks", "--blocks-count", "0"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for invalid rule")
	}
}
