package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
	"github.com/SmitUplenchwar2687/ratewarden/internal/replay"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/memory"
)

func newReplayCmd() *cobra.Command {
	var (
		file        string
		rulesFile   string
		speed       float64
		limiterIDs  []string
		keyPrefixes []string
		afterStr    string
		beforeStr   string
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded traffic through a fresh engine",
		Long: `Replays previously recorded admission traffic against an in-memory
engine on a manual clock. Records run in timeline order and the clock
jumps to each record's tick and wall time, so replenishment behaves
exactly as it did live, at any speed.

Seed the engine with --rules to answer "what would these limits have
done to last week's traffic".

Speed: 0 = instant, 1 = real-time, 10 = 10x`,
		Example: `  ratewarden replay --file traffic.ndjson --rules rules.yaml
  ratewarden replay --file traffic.ndjson --rules rules.yaml --speed 100
  ratewarden replay --file traffic.ndjson --limiters api --key-prefixes svc/
  ratewarden replay --file traffic.ndjson --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			records, err := recorder.LoadFile(file)
			if err != nil {
				return fmt.Errorf("loading traffic: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("no records in %s", file)
			}

			filter := replay.Filter{
				LimiterIDs:  limiterIDs,
				KeyPrefixes: toBytePrefixes(keyPrefixes),
			}
			if afterStr != "" {
				t, err := time.Parse(time.RFC3339, afterStr)
				if err != nil {
					return fmt.Errorf("invalid --after: %w", err)
				}
				filter.After = t
			}
			if beforeStr != "" {
				t, err := time.Parse(time.RFC3339, beforeStr)
				if err != nil {
					return fmt.Errorf("invalid --before: %w", err)
				}
				filter.Before = t
			}

			// The clock starts at or before every record in both time
			// bases so the replayer only ever advances it.
			startTime, startTick := timelineStart(records)
			clk := clock.NewManual(startTime)
			clk.SetTick(startTick)

			eng, err := limiter.New(memory.New(), clk)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if rulesFile != "" {
				if err := applyRulesFile(ctx, rulesFile, eng, zap.NewNop()); err != nil {
					return err
				}
			}

			r := replay.New(eng, clk, speed, filter)
			r.LoadRecords(records)

			out := cmd.OutOrStdout()
			if !outputJSON {
				if speed > 0 {
					fmt.Fprintf(out, "Replaying %s at %.0fx speed...\n\n", file, speed)
				} else {
					fmt.Fprintf(out, "Replaying %s...\n\n", file)
				}
			}

			var results []replay.Result
			summary, err := r.Run(ctx, func(res replay.Result) {
				if outputJSON {
					results = append(results, res)
					return
				}
				status := map[string]string{
					recorder.OutcomeAllowed:  "ALLOW ",
					recorder.OutcomeDenied:   "DENY  ",
					recorder.OutcomeBypassed: "BYPASS",
					recorder.OutcomeError:    "ERROR ",
				}[res.Outcome]
				fmt.Fprintf(out, "  [%s] tick=%-6d %s key=%s amount=%d\n",
					status,
					res.Tick,
					res.Time.Format("15:04:05"),
					res.Record.Key,
					res.Record.Amount)
			})
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(out, map[string]any{
					"results": results,
					"summary": summary,
				})
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Replay Summary ---")
			fmt.Fprintf(out, "  Total records:  %d\n", summary.TotalRecords)
			fmt.Fprintf(out, "  Filtered:       %d\n", summary.Filtered)
			fmt.Fprintf(out, "  Replayed:       %d\n", summary.Replayed)
			fmt.Fprintf(out, "  Allowed:        %d\n", summary.Allowed)
			fmt.Fprintf(out, "  Denied:         %d\n", summary.Denied)
			fmt.Fprintf(out, "  Bypassed:       %d\n", summary.Bypassed)
			if summary.Errors > 0 {
				fmt.Fprintf(out, "  Errors:         %d\n", summary.Errors)
			}
			fmt.Fprintf(out, "  Virtual time:   %s\n", summary.Duration)
			fmt.Fprintf(out, "  Wall time:      %s\n", summary.WallDuration.Round(time.Millisecond))

			if len(summary.PerKey) > 1 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  Per key:")
				for key, ks := range summary.PerKey {
					fmt.Fprintf(out, "    %s: %d allowed, %d denied, %d bypassed\n",
						key, ks.Allowed, ks.Denied, ks.Bypassed)
				}
			}

			if summary.Denied > 0 && summary.Allowed > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, strings.Repeat("=", 50))
				denyRate := float64(summary.Denied) / float64(summary.Replayed) * 100
				fmt.Fprintf(out, "Deny rate: %.1f%% (%d/%d requests denied)\n",
					denyRate, summary.Denied, summary.Replayed)
				fmt.Fprintln(out, strings.Repeat("=", 50))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to recorded traffic file, JSON array or NDJSON (required)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML rules file applied to the engine before replaying")
	cmd.Flags().Float64Var(&speed, "speed", 0, "replay speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().StringSliceVar(&limiterIDs, "limiters", nil, "only replay these limiter ids")
	cmd.Flags().StringSliceVar(&keyPrefixes, "key-prefixes", nil, "only replay keys with one of these prefixes")
	cmd.Flags().StringVar(&afterStr, "after", "", "only replay records after this RFC3339 time")
	cmd.Flags().StringVar(&beforeStr, "before", "", "only replay records before this RFC3339 time")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

func toBytePrefixes(prefixes []string) [][]byte {
	if len(prefixes) == 0 {
		return nil
	}
	out := make([][]byte, len(prefixes))
	for i, p := range prefixes {
		out[i] = []byte(p)
	}
	return out
}

func timelineStart(records []recorder.TrafficRecord) (time.Time, uint64) {
	startTime := records[0].Time
	startTick := records[0].Tick
	for _, rec := range records[1:] {
		if rec.Time.Before(startTime) {
			startTime = rec.Time
		}
		if rec.Tick < startTick {
			startTick = rec.Tick
		}
	}
	return startTime, startTick
}
