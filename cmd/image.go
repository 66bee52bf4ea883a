package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-monitor/internal/report"
)

var (
	imageMIME string
	imageJSON bool
)

var imageCmd = &cobra.Command{
	Use:   "image <path>",
	Short: "Critique a banner or screenshot image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		env, err := initEnv(ctx, cfg, "image")
		if err != nil {
			return err
		}
		defer env.Close()

		mimeType := imageMIME
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(path))
		}

		a, err := env.Pipeline.AnalyzeImage(ctx, filepath.Base(path), data, mimeType)
		if err != nil {
			return explain(err)
		}
		if imageJSON {
			return printJSON(cmd.OutOrStdout(), a)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatImageAnalysis(a))
		return nil
	},
}

func init() {
	imageCmd.Flags().StringVar(&imageMIME, "mime", "", "image MIME type (default: from extension, then sniffed)")
	imageCmd.Flags().BoolVar(&imageJSON, "json", false, "print the analysis as JSON")
	rootCmd.AddCommand(imageCmd)
}
