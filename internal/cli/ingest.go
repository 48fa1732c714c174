package cli

import (
	"github.com/spf13/cobra"

	"sneaker-arb-alerts/internal/app"
)

var (
	ingestFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a JSON batch of listing observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ingest(cmd.Context(), app.IngestOptions{Path: ingestFile})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Path to the observations JSON file (required)")
	_ = ingestCmd.MarkFlagRequired("file")
}
