package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/internal/config"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage replenishment rules on a running server",
		Long: `Reads and writes per-key replenishment rules through the admin API.

Setting a rule always resets the key's accumulated quota; "rules apply"
skips entries whose stored rule is already identical, so re-applying a
rules file does not wipe state.`,
	}

	cmd.AddCommand(
		newRulesGetCmd(),
		newRulesSetCmd(),
		newRulesDelCmd(),
		newRulesApplyCmd(),
	)
	return cmd
}

func newRulesGetCmd() *cobra.Command {
	var b64 bool
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:     "get <key>",
		Short:   "Show the rule for a key",
		Example: `  ratewarden rules get user1 --limiter api`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			rule, err := co.client().ruleGet(cmd.Context(), co.limiter, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rule)
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	return cmd
}

func newRulesSetCmd() *cobra.Command {
	var (
		b64            bool
		kind           string
		blocksCount    uint64
		secsCount      uint64
		quota          uint64
		quotaIncrement uint64
		maxQuota       uint64
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Set the rule for a key (resets its quota)",
		Example: `  ratewarden rules set user1 --kind per_seconds --secs-count 10 --quota 100
  ratewarden rules set user1 --kind token_bucket --blocks-count 5 --quota-increment 10 --max-quota 30
  ratewarden rules set scraper --kind not_allowed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			rule, err := buildRule(kind, blocksCount, secsCount, quota, quotaIncrement, maxQuota)
			if err != nil {
				return err
			}
			if err := co.client().rulePut(cmd.Context(), co.limiter, key, rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule set key=%s kind=%s\n", args[0], rule.Kind)
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	cmd.Flags().StringVar(&kind, "kind", "", "rule kind (per_blocks, per_seconds, token_bucket, unlimited, not_allowed)")
	cmd.Flags().Uint64Var(&blocksCount, "blocks-count", 0, "replenish interval in blocks (per_blocks, token_bucket)")
	cmd.Flags().Uint64Var(&secsCount, "secs-count", 0, "replenish interval in seconds (per_seconds)")
	cmd.Flags().Uint64Var(&quota, "quota", 0, "quota granted per interval (per_blocks, per_seconds)")
	cmd.Flags().Uint64Var(&quotaIncrement, "quota-increment", 0, "quota added per interval (token_bucket)")
	cmd.Flags().Uint64Var(&maxQuota, "max-quota", 0, "quota ceiling (token_bucket)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newRulesDelCmd() *cobra.Command {
	var b64 bool
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:     "del <key>",
		Short:   "Remove the rule for a key (clears its quota)",
		Example: `  ratewarden rules del user1 --limiter api`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			if err := co.client().ruleDelete(cmd.Context(), co.limiter, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule deleted key=%s\n", args[0])
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	return cmd
}

func newRulesApplyCmd() *cobra.Command {
	var file string
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Push a rules file to a running server",
		Long: `Loads a YAML rules file and pushes every entry through the admin API.
Entries whose stored rule is already identical are skipped so applying
the same file twice leaves accumulated quota untouched. A whitelist
section replaces the limiter's whitelist; omitting it leaves the
current whitelist alone.`,
		Example: `  ratewarden rules apply --file rules.yaml
  ratewarden rules apply --file rules.yaml --server http://limits:8080 --token $TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			rf, err := config.LoadRulesFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := co.client()
			var set, skipped int
			for _, lim := range rf.Limiters {
				for _, entry := range lim.Rules {
					key, err := entry.EncodedKey()
					if err != nil {
						return err
					}
					current, err := client.ruleGet(ctx, lim.ID, key)
					if err != nil && !isNotFound(err) {
						return err
					}
					if current != nil && *current == entry.Rule {
						skipped++
						continue
					}
					if err := client.rulePut(ctx, lim.ID, key, entry.Rule); err != nil {
						return err
					}
					set++
				}

				if lim.Whitelist == nil {
					continue
				}
				filters := make([]limiter.KeyFilter, 0, len(lim.Whitelist))
				for _, fe := range lim.Whitelist {
					f, err := fe.Filter()
					if err != nil {
						return err
					}
					filters = append(filters, f)
				}
				if err := client.whitelistReset(ctx, lim.ID, filters); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %s: %d rules set, %d unchanged\n", file, set, skipped)
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().StringVar(&file, "file", "", "path to YAML rules file (required)")
	return cmd
}

func newQuotaCmd() *cobra.Command {
	var (
		b64    bool
		asJSON bool
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "quota <key>",
		Short: "Show a key's quota state with pending replenishment applied",
		Example: `  ratewarden quota user1 --limiter api
  ratewarden quota user1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			res, err := co.client().quota(cmd.Context(), co.limiter, key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			if !res.Tracked {
				fmt.Fprintf(out, "key=%s untracked (no quota rule)\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "key=%s remaining=%d last_updated=%d\n", args[0], res.Remaining, res.LastUpdated)
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func buildRule(kind string, blocksCount, secsCount, quota, quotaIncrement, maxQuota uint64) (limiter.Rule, error) {
	switch limiter.RuleKind(kind) {
	case limiter.RulePerBlocks:
		return limiter.PerBlocks(blocksCount, quota), nil
	case limiter.RulePerSeconds:
		return limiter.PerSeconds(secsCount, quota), nil
	case limiter.RuleTokenBucket:
		return limiter.TokenBucket(blocksCount, quotaIncrement, maxQuota), nil
	case limiter.RuleUnlimited:
		return limiter.Unlimited(), nil
	case limiter.RuleNotAllowed:
		return limiter.NotAllowed(), nil
	default:
		return limiter.Rule{}, fmt.Errorf("unknown rule kind %q", kind)
	}
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
