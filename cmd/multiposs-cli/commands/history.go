package commands

import (
	"fmt"
	"multiposs/lib/balancestore"
	"multiposs/lib/timezone"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyDb    *string
	historyUser  *string
	historyLimit *int
	historyDays  *int
)

func init() {
	historyDb = historyCmd.Flags().String("db", "history.db", "The sqlite database balances were recorded to.")
	historyUser = historyCmd.Flags().String("user", "", "The account to show, defaults to the configured username.")
	historyLimit = historyCmd.Flags().Int("limit", 20, "The number of entries to show, 0 shows all of them.")
	historyDays = historyCmd.Flags().Int("days", 0, "Only show entries from the last n days (portal time), 0 shows all of them.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/history.db>] [--user <username>] [--limit <n>] [--days <n>]",
	Short: "Lists recorded balances, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		username := *historyUser
		if username == "" {
			cfg, err := readConfig(*configPath)
			if err != nil {
				return err
			}
			username = cfg.Username
		}

		db, err := balancestore.OpenDB(*historyDb)
		if err != nil {
			return err
		}
		defer db.Close()

		snapshots, err := balancestore.NewStore(db).History(cmd.Context(), username, *historyLimit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}

		snapshots = since(snapshots, *historyDays, timezone.Now())

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Time", "Balance", "Text"})
		for _, s := range snapshots {
			balance := "NaN"
			if s.Valid {
				balance = fmt.Sprint(s.Credits)
			}
			t.AppendRow(table.Row{s.Time.In(timezone.Location).Format(time.DateTime), balance, s.Raw})
		}
		t.Render()
		return nil
	},
}

// since keeps the snapshots taken on the last `days` days including today,
// snapshots must be sorted newest first.
func since(snapshots []balancestore.Snapshot, days int, now time.Time) []balancestore.Snapshot {
	if days <= 0 {
		return snapshots
	}
	cutoff := timezone.StartOfDay(now).AddDate(0, 0, -(days - 1))
	for i, s := range snapshots {
		if s.Time.Before(cutoff) {
			return snapshots[:i]
		}
	}
	return snapshots
}
