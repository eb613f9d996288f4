package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

func newWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage a limiter's bypass whitelist on a running server",
		Long: `Whitelisted keys skip rate limiting entirely. Filters match the raw
key bytes exactly, by prefix, or by suffix.`,
	}

	cmd.AddCommand(
		newWhitelistShowCmd(),
		newWhitelistAddCmd(),
		newWhitelistRemoveCmd(),
		newWhitelistResetCmd(),
	)
	return cmd
}

func newWhitelistShowCmd() *cobra.Command {
	var asJSON bool
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:     "show",
		Short:   "List the limiter's bypass filters",
		Example: `  ratewarden whitelist show --limiter api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := co.client().whitelist(cmd.Context(), co.limiter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, filters)
			}
			if len(filters) == 0 {
				fmt.Fprintln(out, "no filters")
				return nil
			}
			for _, f := range filters {
				fmt.Fprintf(out, "%-11s %q\n", f.Kind, f.Pattern)
			}
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newWhitelistAddCmd() *cobra.Command {
	var (
		kind string
		b64  bool
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a bypass filter",
		Example: `  ratewarden whitelist add vip-user
  ratewarden whitelist add svc/ --kind starts_with
  ratewarden whitelist add -internal --kind ends_with --limiter api`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			filter, err := buildFilter(kind, pattern)
			if err != nil {
				return err
			}
			if err := co.client().whitelistAdd(cmd.Context(), co.limiter, filter); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %q\n", filter.Kind, args[0])
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().StringVar(&kind, "kind", "match", "filter kind (match, starts_with, ends_with)")
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the pattern argument as standard base64")
	return cmd
}

func newWhitelistRemoveCmd() *cobra.Command {
	var (
		kind string
		b64  bool
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "remove <pattern>",
		Short: "Remove a bypass filter",
		Example: `  ratewarden whitelist remove vip-user
  ratewarden whitelist remove svc/ --kind starts_with`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			filter, err := buildFilter(kind, pattern)
			if err != nil {
				return err
			}
			if err := co.client().whitelistRemove(cmd.Context(), co.limiter, filter); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s %q\n", filter.Kind, args[0])
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().StringVar(&kind, "kind", "match", "filter kind (match, starts_with, ends_with)")
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the pattern argument as standard base64")
	return cmd
}

func newWhitelistResetCmd() *cobra.Command {
	var b64 bool
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "reset [kind:pattern ...]",
		Short: "Replace the whitelist with the given filters",
		Long: `Replaces the limiter's whitelist in one step. Each argument is a
kind:pattern pair; with no arguments the whitelist is cleared.`,
		Example: `  ratewarden whitelist reset match:vip-user starts_with:svc/
  ratewarden whitelist reset ends_with:-internal --limiter api
  ratewarden whitelist reset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := make([]limiter.KeyFilter, 0, len(args))
			for _, arg := range args {
				kind, rawPattern, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("invalid filter %q, want kind:pattern", arg)
				}
				pattern, err := parseKeyArg(rawPattern, b64)
				if err != nil {
					return err
				}
				filter, err := buildFilter(kind, pattern)
				if err != nil {
					return err
				}
				filters = append(filters, filter)
			}
			if err := co.client().whitelistReset(cmd.Context(), co.limiter, filters); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "whitelist reset to %d filters\n", len(filters))
			return nil
		},
	}

	co.addFlags(cmd)
	co.addTokenFlag(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat filter patterns as standard base64")
	return cmd
}

func buildFilter(kind string, pattern []byte) (limiter.KeyFilter, error) {
	switch limiter.FilterKind(kind) {
	case limiter.FilterMatch:
		return limiter.Match(pattern), nil
	case limiter.FilterStartsWith:
		return limiter.StartsWith(pattern), nil
	case limiter.FilterEndsWith:
		return limiter.EndsWith(pattern), nil
	default:
		return limiter.KeyFilter{}, fmt.Errorf("unknown filter kind %q", kind)
	}
}
