package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-monitor/internal/report"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the analysis history to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		hist, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer hist.Close() //nolint:errcheck

		entries, err := hist.Recent(ctx, exportLimit)
		if err != nil {
			return err
		}
		if err := report.SaveXLSX(exportOut, nil, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "report.xlsx", "output xlsx path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max entries (default: history.max_items)")
	rootCmd.AddCommand(exportCmd)
}
