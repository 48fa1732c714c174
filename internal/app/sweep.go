package app

import (
	"context"
	"fmt"
	"os"
)

// Sweep runs one staleness sweep and one delivery prune immediately,
// outside the cron schedule.
func (a *App) Sweep(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	// Sweeping never touches sizes; skip hydrating the index.
	svc := a.newService(store, nil)

	swept, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	pruned, err := svc.PruneDeliveries(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "swept %d stale offers, pruned %d delivery records\n", swept, pruned)
	return nil
}
