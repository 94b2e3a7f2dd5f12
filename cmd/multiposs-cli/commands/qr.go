package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var qrRefresh *bool

func init() {
	qrRefresh = qrCmd.Flags().Bool("refresh", false, "Request a new QR id even if one was read already.")
	rootCmd.AddCommand(qrCmd)
}

var qrCmd = &cobra.Command{
	Use:   "qr [--refresh]",
	Short: "Prints the QR id of the account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		var id string
		if *qrRefresh {
			id, err = client.RefreshQrId(ctx)
		} else {
			id, err = client.QrId(ctx)
		}
		if err != nil {
			return fmt.Errorf("qr id: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
