package cli

import (
	"github.com/spf13/cobra"

	"witswatch/internal/app"
)

var (
	exportDir       string
	exportPNG       bool
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the derived CSV files and island chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Dir:       exportDir,
			PNG:       exportPNG,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (defaults to export.dir)")
	exportCmd.Flags().BoolVar(&exportPNG, "png", false, "Also render island_week.png")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum rows per resampled file (defaults to config)")
}
