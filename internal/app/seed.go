package app

import (
	"context"

	"sneaker-arb-alerts/internal/sizing"
)

// SeedSizes persists the generated canonical size table. Re-running is
// idempotent: existing (gender, ordinal) rows keep their ids and get their
// derived standards refreshed.
func (a *App) SeedSizes(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sizes := sizing.DefaultSizes()
	for _, size := range sizes {
		if err := store.UpsertCanonicalSize(ctx, size); err != nil {
			return err
		}
	}

	a.Logger.Info().Int("sizes", len(sizes)).Msg("canonical size table seeded")
	return nil
}
