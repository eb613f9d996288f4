package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/internal/config"
	"github.com/SmitUplenchwar2687/ratewarden/internal/generate"
	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate traffic files and example configuration",
	}

	cmd.AddCommand(newGenerateTrafficCmd())
	cmd.AddCommand(newGenerateConfigCmd())
	cmd.AddCommand(newGenerateRulesCmd())

	return cmd
}

func newGenerateTrafficCmd() *cobra.Command {
	var (
		count         int
		keys          int
		durationStr   string
		pattern       string
		startStr      string
		startTick     uint64
		blockInterval time.Duration
		seed          int64
		limiterID     string
		maxAmount     uint64
		output        string
		asArray       bool
	)

	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Generate synthetic traffic for replay testing",
		Long: `Generates synthetic admission traffic and writes it in the same
format the serve command records, so it feeds straight into replay.

Patterns:
  steady - evenly spaced requests
  burst  - clustered bursts with sparse traffic between
  ramp   - request rate increases over the duration`,
		Example: `  ratewarden generate traffic --count 500 --keys 5 --output traffic.ndjson
  ratewarden generate traffic --pattern burst --duration 10m --output burst.ndjson
  ratewarden generate traffic --count 200 --seed 42 --json-array --output traffic.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dur, err := time.ParseDuration(durationStr)
			if err != nil {
				return fmt.Errorf("invalid --duration: %w", err)
			}

			opts := generate.Options{
				Count:         count,
				Keys:          keys,
				Duration:      dur,
				Pattern:       pattern,
				StartTick:     startTick,
				BlockInterval: blockInterval,
				Seed:          seed,
				LimiterID:     limiterID,
				MaxAmount:     maxAmount,
			}
			if startStr != "" {
				t, err := time.Parse(time.RFC3339, startStr)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				opts.Start = t
			}

			records, err := generate.Traffic(&opts)
			if err != nil {
				return err
			}

			if output == "" {
				rec := recorder.New(cmd.OutOrStdout())
				for _, r := range records {
					if err := rec.Record(r); err != nil {
						return err
					}
				}
				return nil
			}

			if err := writeTrafficFile(output, records, asArray); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(records), output)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 100, "number of records to generate")
	cmd.Flags().IntVar(&keys, "keys", 3, "number of distinct keys")
	cmd.Flags().StringVar(&durationStr, "duration", "5m", "time span the records cover")
	cmd.Flags().StringVar(&pattern, "pattern", generate.PatternSteady, "traffic pattern (steady, burst, ramp)")
	cmd.Flags().StringVar(&startStr, "start", "", "RFC3339 start of the timeline (default: now)")
	cmd.Flags().Uint64Var(&startTick, "start-tick", 0, "block tick of the first record")
	cmd.Flags().DurationVar(&blockInterval, "block-interval", time.Second, "wall time per block tick")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for reproducible output (0=random)")
	cmd.Flags().StringVar(&limiterID, "limiter", "default", "limiter id stamped on each record")
	cmd.Flags().Uint64Var(&maxAmount, "max-amount", 1, "draw amounts from [1, max-amount]")
	cmd.Flags().StringVar(&output, "output", "", "output file (default: NDJSON to stdout)")
	cmd.Flags().BoolVar(&asArray, "json-array", false, "write a JSON array instead of NDJSON")

	return cmd
}

func writeTrafficFile(path string, records []recorder.TrafficRecord, asArray bool) error {
	rec := recorder.New(nil)
	if asArray {
		for _, r := range records {
			if err := rec.Record(r); err != nil {
				return err
			}
		}
		return rec.ExportFile(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stream := recorder.New(f)
	for _, r := range records {
		if err := stream.Record(r); err != nil {
			return err
		}
	}
	return nil
}

func newGenerateConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write an example server configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote example config to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "ratewarden.yaml", "path for the example config")

	return cmd
}

func newGenerateRulesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Write an example rules file",
		Long: `Writes an example rules file covering every rule kind and a
whitelist block. Edit it, then load it with serve --rules or push it
to a running server with rules apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExampleRules(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote example rules to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "rules.yaml", "path for the example rules file")

	return cmd
}
