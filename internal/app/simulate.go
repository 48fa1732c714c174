package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// SimulateScan runs the scan pipeline for one rule and prints the webhook
// payload it would send, without claiming the rule or recording anything.
func (a *App) SimulateScan(ctx context.Context, opts SimulateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rule, err := store.GetRule(ctx, opts.RuleID)
	if err != nil {
		return fmt.Errorf("load rule %s: %w", opts.RuleID, err)
	}

	index, err := a.loadSizeIndex(ctx, store)
	if err != nil {
		return err
	}

	svc := a.newService(store, index)
	note, err := svc.PreviewRule(ctx, rule)
	if err != nil {
		return err
	}

	if len(note.Opportunities) == 0 {
		fmt.Fprintln(os.Stdout, "rule matches no new opportunities")
		return nil
	}

	if opts.WebhookURL != "" {
		if err := a.newNotifier().Notify(ctx, opts.WebhookURL, note); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "delivered %d opportunities to %s\n", len(note.Opportunities), opts.WebhookURL)
		return nil
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(note)
}
