package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root ratewarden command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ratewarden",
		Short: "Quota-based rate limiting with replayable decisions",
		Long: `Ratewarden serves rate limit decisions over HTTP, with per-key
replenishment rules, whitelist bypass, and recorded traffic you can
replay against new rules on a virtual clock.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newRecordCmd(),
		newBypassCmd(),
		newRulesCmd(),
		newWhitelistCmd(),
		newQuotaCmd(),
		newTestCmd(),
		newReplayCmd(),
		newGenerateCmd(),
	)

	return root
}
