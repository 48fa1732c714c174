package cli

import (
	"github.com/spf13/cobra"
)

var seedSizesCmd = &cobra.Command{
	Use:   "seed-sizes",
	Short: "Persist the canonical shoe size table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SeedSizes(cmd.Context())
	},
}
