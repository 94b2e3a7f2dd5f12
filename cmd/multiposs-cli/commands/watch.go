package commands

import (
	"context"
	"errors"
	"log/slog"
	"multiposs/lib/balancestore"
	"multiposs/lib/multiposs"
	"multiposs/lib/telemetry"
	"time"

	"github.com/spf13/cobra"
)

var (
	watchDb       *string
	watchInterval *time.Duration
)

func init() {
	watchDb = watchCmd.Flags().String("db", "history.db", "The sqlite database to record balances to.")
	watchInterval = watchCmd.Flags().Duration("interval", time.Hour, "How often to read the balance.")
	rootCmd.AddCommand(watchCmd)
}

// recordIfChanged stores the balance unless it is the same as the last one
// recorded for the account.
func recordIfChanged(ctx context.Context, store balancestore.Store, snapshot balancestore.Snapshot) (bool, error) {
	latest, err := store.Latest(ctx, snapshot.Username)
	if err != nil && !errors.Is(err, balancestore.NotFound) {
		return false, err
	}
	if err == nil &&
		latest.Valid == snapshot.Valid &&
		latest.Credits == snapshot.Credits &&
		latest.Raw == snapshot.Raw {
		return false, nil
	}
	return true, store.Record(ctx, snapshot)
}

func watchOnce(ctx context.Context, client *multiposs.Client, store balancestore.Store) {
	// the portal session does not survive between ticks
	client.Invalidate()
	balance, err := client.RefreshBalance(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read balance", "err", err)
		return
	}
	recorded, err := recordIfChanged(ctx, store, snapshotOf(client.Username(), balance, time.Now()))
	if err != nil {
		slog.ErrorContext(ctx, "failed to record balance", "err", err)
		return
	}
	slog.InfoContext(ctx, "read balance", "balance", balance.String(), "recorded", recorded)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--db <path/to/history.db>] [--interval <duration>]",
	Short: "Reads the balance on an interval and records every change until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := createClient(ctx)
		if err != nil {
			return err
		}
		db, err := balancestore.OpenDB(*watchDb)
		if err != nil {
			return err
		}
		defer db.Close()
		store := balancestore.NewStore(db)

		telemetry.InstrumentPerfStats(ctx, time.Minute)

		ticker := time.NewTicker(*watchInterval)
		defer ticker.Stop()
		for {
			watchOnce(ctx, client, store)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	},
}
