package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-monitor/internal/report"
)

var (
	textFile string
	textJSON bool
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Critique marketing copy from a file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readText(cmd.InOrStdin(), textFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "text")
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Pipeline.AnalyzeText(ctx, text)
		if err != nil {
			return explain(err)
		}
		if textJSON {
			return printJSON(cmd.OutOrStdout(), a)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatTextAnalysis(a))
		return nil
	},
}

func readText(stdin io.Reader, path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "read %s", path)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "read stdin")
	}
	return string(data), nil
}

func init() {
	textCmd.Flags().StringVar(&textFile, "file", "", "text file to analyze (default stdin)")
	textCmd.Flags().BoolVar(&textJSON, "json", false, "print the analysis as JSON")
	rootCmd.AddCommand(textCmd)
}
