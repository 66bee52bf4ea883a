package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/config"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
	"github.com/sells-group/competitor-monitor/internal/report"
)

var (
	analyzeFile string
	analyzeJSON bool
	analyzeXLSX string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [urls...]",
	Short: "Render and critique competitor websites",
	Long:  "Analyzes the given URLs, or the competitors listed in --file, or the competitors from config when neither is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls, err := resolveURLs(args, analyzeFile, cfg.Competitors)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		var results []*pipeline.Result
		if len(urls) == 1 {
			res, err := env.Pipeline.AnalyzeCompetitor(ctx, urls[0])
			if err != nil {
				// Still show what was rendered before the analysis failed.
				if analyzeJSON {
					_ = printJSON(cmd.OutOrStdout(), res)
				} else {
					fmt.Fprint(cmd.OutOrStdout(), report.FormatResult(res))
				}
				return explain(err)
			}
			results = []*pipeline.Result{res}
		} else {
			results = env.Pipeline.AnalyzeAll(ctx, urls)
		}

		if analyzeXLSX != "" {
			if err := report.SaveXLSX(analyzeXLSX, results, nil); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", analyzeXLSX))
		}

		if analyzeJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}
		for _, res := range results {
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatResult(res))
		}

		if failed := countFailed(results); failed == len(results) {
			return eris.Errorf("all %d competitors failed", failed)
		}
		return nil
	},
}

// resolveURLs picks the URL source: arguments, then a competitor file, then
// the configured defaults.
func resolveURLs(args []string, file string, defaults []string) ([]string, error) {
	switch {
	case len(args) > 0:
		return args, nil
	case file != "":
		list, err := config.LoadCompetitors(file)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, eris.Errorf("no competitors in %s", file)
		}
		return config.URLs(list), nil
	case len(defaults) > 0:
		return defaults, nil
	default:
		return nil, eris.New("no URLs given: pass them as arguments, use --file, or set competitors in config")
	}
}

func countFailed(results []*pipeline.Result) int {
	n := 0
	for _, r := range results {
		if r.Outcome != pipeline.OutcomeOK {
			n++
		}
	}
	return n
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "YAML file listing competitors")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print results as JSON")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write results to this xlsx file")
	rootCmd.AddCommand(analyzeCmd)
}
