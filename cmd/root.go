package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "competitor-monitor",
	Short: "Render competitor sites and get an LLM marketing critique",
	Long: `competitor-monitor renders competitor websites in headless Chrome (or a plain
HTTP fetch when no browser is available), pulls the title, first heading and
first paragraph plus a screenshot, and asks an OpenAI-compatible model for a
structured critique: strengths, weaknesses, unique offers, recommendations and
a 0-10 design score. Marketing copy and banner images can be critiqued directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("llm_provider", cfg.LLM.Provider),
			zap.String("render_engine", cfg.Render.Engine),
			zap.String("history_driver", cfg.History.Driver),
			zap.Int("competitors", len(cfg.Competitors)),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
