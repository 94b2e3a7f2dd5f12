package commands

import (
	"fmt"
	"log/slog"
	"multiposs/lib/balancestore"
	"multiposs/lib/multiposs"
	"time"

	"github.com/spf13/cobra"
)

var (
	balanceRefresh *bool
	balanceRecord  *string
)

func init() {
	balanceRefresh = balanceCmd.Flags().Bool("refresh", false, "Always re-read the balance from the main page.")
	balanceRecord = balanceCmd.Flags().String("record", "", "A sqlite database to append the balance to.")
	rootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance [--refresh] [--record <path/to/history.db>]",
	Short: "Prints the credit balance of the account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		var balance multiposs.Balance
		if *balanceRefresh {
			balance, err = client.RefreshBalance(ctx)
		} else {
			balance, err = client.Balance(ctx)
		}
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		if !balance.Valid {
			slog.WarnContext(ctx, "balance is not a number", "text", balance.Raw)
		}
		fmt.Fprintln(cmd.OutOrStdout(), balance.String())

		if *balanceRecord == "" {
			return nil
		}
		db, err := balancestore.OpenDB(*balanceRecord)
		if err != nil {
			return err
		}
		defer db.Close()
		return balancestore.NewStore(db).Record(ctx, snapshotOf(client.Username(), balance, time.Now()))
	},
}

func snapshotOf(username string, balance multiposs.Balance, now time.Time) balancestore.Snapshot {
	return balancestore.Snapshot{
		Username: username,
		Time:     now,
		Credits:  balance.Credits,
		Valid:    balance.Valid,
		Raw:      balance.Raw,
	}
}
