package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var (
		amount uint64
		b64    bool
		asJSON bool
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "check <key>",
		Short: "Check whether a key may spend quota",
		Long: `Runs the admission check against a running server. Checking never
consumes quota: once the guarded work succeeds, confirm it with
"ratewarden record" to spend the amount.`,
		Example: `  ratewarden check user1
  ratewarden check user1 --amount 5 --limiter api
  ratewarden check AAECAw== --b64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			res, err := co.client().check(cmd.Context(), co.limiter, key, amount)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			switch {
			case res.Bypass:
				fmt.Fprintf(out, "BYPASS key=%s\n", args[0])
			case res.Allowed && res.Remaining != nil:
				fmt.Fprintf(out, "ALLOW  key=%s remaining=%d\n", args[0], *res.Remaining)
			case res.Allowed:
				fmt.Fprintf(out, "ALLOW  key=%s\n", args[0])
			case res.Remaining != nil:
				fmt.Fprintf(out, "DENY   key=%s remaining=%d\n", args[0], *res.Remaining)
			default:
				fmt.Fprintf(out, "DENY   key=%s\n", args[0])
			}
			return nil
		},
	}

	co.addFlags(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 1, "quota amount to check")
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the raw decision as JSON")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var (
		amount uint64
		b64    bool
	)
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "record <key>",
		Short: "Consume quota for a key after admitted work",
		Example: `  ratewarden record user1
  ratewarden record user1 --amount 5 --limiter api`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			if err := co.client().record(cmd.Context(), co.limiter, key, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded key=%s amount=%d\n", args[0], amount)
			return nil
		},
	}

	co.addFlags(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 1, "quota amount to consume")
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	return cmd
}

func newBypassCmd() *cobra.Command {
	var b64 bool
	co := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "bypass <key>",
		Short: "Check whether a key skips limiting via the whitelist",
		Example: `  ratewarden bypass vip-user
  ratewarden bypass vip-user --limiter api`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0], b64)
			if err != nil {
				return err
			}
			bypass, err := co.client().bypass(cmd.Context(), co.limiter, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bypass=%t key=%s\n", bypass, args[0])
			return nil
		},
	}

	co.addFlags(cmd)
	cmd.Flags().BoolVar(&b64, "b64", false, "treat the key argument as standard base64")
	return cmd
}
