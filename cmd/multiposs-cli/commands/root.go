package commands

import (
	"context"
	"multiposs/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	dumpHttp   *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:           "multiposs-cli",
	Short:         "multiposs-cli reads the login status, balance and QR id of a multiposs account.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", "multiposs.json5", "The json5 file holding the account credentials.")
	dumpHttp = flags.String("dump-http", "", "A directory to write every request and response to (requires --verbose).")
	verbose = flags.BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
