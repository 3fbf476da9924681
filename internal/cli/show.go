package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"witswatch/internal/app"
)

var (
	showLimit int
	showTable string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent columns of a rolling table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			Table: showTable,
			Limit: showLimit,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 12, "Number of intervals to display")
	showCmd.Flags().StringVar(&showTable, "table", "stats", "Table to display: stats, islands, regions, reserve, backlog")
}
