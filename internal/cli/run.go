package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"witswatch/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run fetch cycles and alert checks on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var fetchAt string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the latest interval and update the rolling tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.FetchOptions{}
		if fetchAt != "" {
			at, err := time.Parse(time.RFC3339, fetchAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			opts.At = &at
		}
		return getApp().Fetch(cmd.Context(), opts)
	},
}

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Evaluate the latest prices and send an alert if a trigger is met",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Alert(cmd.Context())
	},
}

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Retry intervals whose files were not available in time",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backlog(cmd.Context())
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchAt, "at", "", "Pretend the cycle runs at this time (RFC3339)")
}
