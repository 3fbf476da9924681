package cli

import (
	"github.com/spf13/cobra"

	"witswatch/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send an alert for synthetic prices through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateOpts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.Node, "node", "TEST0001", "Node reported as the maximum")
	simulateCmd.Flags().StringVar(&simulateOpts.Max, "max", "1500", "Maximum node price")
	simulateCmd.Flags().StringVar(&simulateOpts.North, "ni", "600", "North Island mean price")
	simulateCmd.Flags().StringVar(&simulateOpts.South, "si", "400", "South Island mean price")
	simulateCmd.Flags().IntVar(&simulateOpts.Period, "tp", 1, "Trading period")
}
