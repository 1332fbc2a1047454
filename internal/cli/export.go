package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goldwatcher/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the historical price log as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		from, err := parseTimeFlag(exportFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		opts.From = from

		to, err := parseTimeFlag(exportTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		opts.To = to

		return getApp().Export(cmd.Context(), opts)
	},
}

func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start of export window (RFC3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End of export window (RFC3339)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV output")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum number of points to export (0 uses config default)")
}
