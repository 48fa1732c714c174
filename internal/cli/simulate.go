package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sneaker-arb-alerts/internal/app"
)

var (
	simulateRuleID  string
	simulateWebhook string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-scan",
	Short: "Dry-run one rule and print the payload it would send",
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleID, err := uuid.Parse(simulateRuleID)
		if err != nil {
			return fmt.Errorf("invalid --rule value: %w", err)
		}

		return getApp().SimulateScan(cmd.Context(), app.SimulateOptions{
			RuleID:     ruleID,
			WebhookURL: simulateWebhook,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateRuleID, "rule", "", "Alert rule id to evaluate (required)")
	simulateCmd.Flags().StringVar(&simulateWebhook, "webhook", "", "Deliver to this URL instead of printing the payload")
	_ = simulateCmd.MarkFlagRequired("rule")
}
