package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

func errorCell(err error) string {
	return "error: " + err.Error()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the login status, balance and QR id in a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Account", "Logged in", "Balance", "QR id"})

		row := table.Row{client.Username()}
		ok, err := client.LoggedIn(ctx)
		if err != nil {
			row = append(row, errorCell(err), "", "")
			t.AppendRow(row)
			t.Render()
			return err
		}
		row = append(row, ok)

		balance, err := client.Balance(ctx)
		if err != nil {
			row = append(row, errorCell(err))
		} else {
			row = append(row, balance.String())
		}

		id, err := client.QrId(ctx)
		if err != nil {
			row = append(row, errorCell(err))
		} else {
			row = append(row, id)
		}

		t.AppendRow(row)
		t.Render()
		return nil
	},
}
