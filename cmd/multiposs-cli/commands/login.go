package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in and reports whether it worked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := createClient(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := client.LoggedIn(cmd.Context())
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s: %t\n", client.Username(), ok)
		return nil
	},
}
