package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/memory"
)

func newTestCmd() *cobra.Command {
	var (
		kind           string
		blocksCount    uint64
		secsCount      uint64
		quota          uint64
		quotaIncrement uint64
		maxQuota       uint64
		requests       int
		amount         uint64
		keys           []string
		ffTicks        uint64
		ffDuration     time.Duration
		outputJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run rate limit scenarios on a virtual clock",
		Long: `Runs admission attempts against an in-memory engine with a manual
clock, so replenishment that would take hours happens instantly.

The scenario sends a batch of requests, optionally fast-forwards the
clock, then sends another batch to show how quota replenishes. The
clock starts one full replenish interval in, so the first grant has
already matured.`,
		Example: `  ratewarden test --requests 15
  ratewarden test --kind per_blocks --blocks-count 10 --quota 5 --fast-forward-ticks 10
  ratewarden test --kind per_seconds --secs-count 30 --quota 5 --fast-forward 30s
  ratewarden test --keys user1,user2 --requests 8 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(keys) == 0 {
				keys = []string{"test-user"}
			}
			rule, err := buildRule(kind, blocksCount, secsCount, quota, quotaIncrement, maxQuota)
			if err != nil {
				return err
			}

			clk := clock.NewManual(time.Now().Truncate(time.Second))
			eng, err := limiter.New(memory.New(), clk)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for _, key := range keys {
				if err := eng.UpdateRule(ctx, "test", []byte(key), &rule); err != nil {
					return err
				}
			}

			// A fresh key replenishes only once a whole interval has
			// elapsed; skip the wait.
			clk.AdvanceTicks(rule.BlocksCount)
			clk.Advance(time.Duration(rule.SecsCount) * time.Second)

			result, err := runScenario(ctx, eng, clk, rule, keys, requests, amount, ffTicks, ffDuration)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printScenario(cmd.OutOrStdout(), &result)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "token_bucket", "rule kind (per_blocks, per_seconds, token_bucket, unlimited, not_allowed)")
	cmd.Flags().Uint64Var(&blocksCount, "blocks-count", 5, "replenish interval in blocks (per_blocks, token_bucket)")
	cmd.Flags().Uint64Var(&secsCount, "secs-count", 0, "replenish interval in seconds (per_seconds)")
	cmd.Flags().Uint64Var(&quota, "quota", 0, "quota granted per interval (per_blocks, per_seconds)")
	cmd.Flags().Uint64Var(&quotaIncrement, "quota-increment", 10, "quota added per interval (token_bucket)")
	cmd.Flags().Uint64Var(&maxQuota, "max-quota", 30, "quota ceiling (token_bucket)")
	cmd.Flags().IntVar(&requests, "requests", 15, "number of requests to send per batch")
	cmd.Flags().Uint64Var(&amount, "amount", 1, "quota amount per request")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "comma-separated keys to test")
	cmd.Flags().Uint64Var(&ffTicks, "fast-forward-ticks", 0, "block ticks to advance between batches")
	cmd.Flags().DurationVar(&ffDuration, "fast-forward", 0, "wall time to advance between batches")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

// TestResult captures the full output of a scenario run.
type TestResult struct {
	Rule        limiter.Rule          `json:"rule"`
	FastForward string                `json:"fast_forward,omitempty"`
	Batches     []BatchResult         `json:"batches"`
	Summary     map[string]KeyOutcome `json:"summary"`
}

// BatchResult captures the decisions of one batch of requests.
type BatchResult struct {
	Label     string           `json:"label"`
	Time      string           `json:"time"`
	Tick      uint64           `json:"tick"`
	Decisions []DecisionRecord `json:"decisions"`
}

// DecisionRecord is a single admission attempt's outcome.
type DecisionRecord struct {
	Key       string  `json:"key"`
	Outcome   string  `json:"outcome"`
	Remaining *uint64 `json:"remaining,omitempty"`
}

// KeyOutcome aggregates attempts per key.
type KeyOutcome struct {
	TotalRequests int `json:"total_requests"`
	Allowed       int `json:"allowed"`
	Denied        int `json:"denied"`
	Bypassed      int `json:"bypassed"`
}

func runScenario(ctx context.Context, eng *limiter.Engine, clk *clock.Manual, rule limiter.Rule, keys []string, requests int, amount, ffTicks uint64, ffDur time.Duration) (TestResult, error) {
	result := TestResult{
		Rule:    rule,
		Summary: make(map[string]KeyOutcome),
	}

	batch, err := runBatch(ctx, eng, clk, "Initial requests", keys, requests, amount, result.Summary)
	if err != nil {
		return result, err
	}
	result.Batches = append(result.Batches, batch)

	if ffTicks == 0 && ffDur == 0 {
		return result, nil
	}

	clk.AdvanceTicks(ffTicks)
	clk.Advance(ffDur)
	result.FastForward = describeFastForward(ffTicks, ffDur)

	batch, err = runBatch(ctx, eng, clk,
		fmt.Sprintf("After fast-forward %s", result.FastForward),
		keys, requests, amount, result.Summary)
	if err != nil {
		return result, err
	}
	result.Batches = append(result.Batches, batch)

	return result, nil
}

func runBatch(ctx context.Context, eng *limiter.Engine, clk *clock.Manual, label string, keys []string, requests int, amount uint64, summary map[string]KeyOutcome) (BatchResult, error) {
	batch := BatchResult{
		Label: label,
		Time:  clk.Now().Format(time.RFC3339),
		Tick:  clk.Tick(),
	}

	for i := 0; i < requests; i++ {
		for _, key := range keys {
			dec, err := attempt(ctx, eng, key, amount)
			if err != nil {
				return batch, err
			}
			batch.Decisions = append(batch.Decisions, dec)

			s := summary[key]
			s.TotalRequests++
			switch dec.Outcome {
			case "allowed":
				s.Allowed++
			case "denied":
				s.Denied++
			case "bypassed":
				s.Bypassed++
			}
			summary[key] = s
		}
	}
	return batch, nil
}

// attempt runs the full admission sequence for one request: whitelist
// probe, quota check, and consumption when allowed.
func attempt(ctx context.Context, eng *limiter.Engine, key string, amount uint64) (DecisionRecord, error) {
	dec := DecisionRecord{Key: key}
	k := []byte(key)

	bypass, err := eng.BypassLimit(ctx, "test", k)
	if err != nil {
		return dec, err
	}
	if bypass {
		dec.Outcome = "bypassed"
		return dec, nil
	}

	switch err := eng.IsAllowed(ctx, "test", k, amount); {
	case err == nil:
		if err := eng.Record(ctx, "test", k, amount); err != nil {
			return dec, err
		}
		dec.Outcome = "allowed"
	case errors.Is(err, limiter.ErrExceedLimit):
		dec.Outcome = "denied"
	default:
		return dec, err
	}

	if state, tracked, err := eng.PreviewQuota(ctx, "test", k); err == nil && tracked {
		dec.Remaining = &state.Remaining
	}
	return dec, nil
}

func describeFastForward(ticks uint64, dur time.Duration) string {
	switch {
	case ticks > 0 && dur > 0:
		return fmt.Sprintf("%d ticks + %s", ticks, dur)
	case ticks > 0:
		return fmt.Sprintf("%d ticks", ticks)
	default:
		return dur.String()
	}
}

func printScenario(w io.Writer, r *TestResult) {
	fmt.Fprintln(w, "=== Ratewarden Scenario ===")
	fmt.Fprintln(w)

	for _, batch := range r.Batches {
		fmt.Fprintf(w, "--- %s (tick %d, %s) ---\n", batch.Label, batch.Tick, batch.Time)
		for i, dec := range batch.Decisions {
			status := map[string]string{
				"allowed":  "ALLOW ",
				"denied":   "DENY  ",
				"bypassed": "BYPASS",
			}[dec.Outcome]
			if dec.Remaining != nil {
				fmt.Fprintf(w, "  #%03d [%s] key=%s remaining=%d\n", i+1, status, dec.Key, *dec.Remaining)
			} else {
				fmt.Fprintf(w, "  #%03d [%s] key=%s\n", i+1, status, dec.Key)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Summary ---")
	for key, s := range r.Summary {
		fmt.Fprintf(w, "  %s: %d total, %d allowed, %d denied, %d bypassed\n",
			key, s.TotalRequests, s.Allowed, s.Denied, s.Bypassed)
	}

	if r.FastForward != "" {
		fmt.Fprintf(w, "\nFast-forwarded %s between batches\n", r.FastForward)
	}

	// Call out the interesting case: limits hit, then recovered after
	// the clock moved.
	hasDenials := false
	for _, batch := range r.Batches {
		for _, dec := range batch.Decisions {
			if dec.Outcome == "denied" {
				hasDenials = true
			}
		}
	}
	hasRecovery := false
	if len(r.Batches) > 1 {
		for _, dec := range r.Batches[1].Decisions {
			if dec.Outcome == "allowed" {
				hasRecovery = true
				break
			}
		}
	}
	if hasDenials && hasRecovery {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Repeat("=", 50))
		fmt.Fprintln(w, "Quota exhausted, then replenished after the")
		fmt.Fprintln(w, "fast-forward. No waiting required.")
		fmt.Fprintln(w, strings.Repeat("=", 50))
	}
}
