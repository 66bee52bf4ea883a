package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-monitor/internal/report"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		hist, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer hist.Close() //nolint:errcheck

		entries, err := hist.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatHistory(entries))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "max entries (default: history.max_items)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(historyCmd)
}
