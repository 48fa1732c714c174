package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/service"
	"sneaker-arb-alerts/internal/sizing"
	"sneaker-arb-alerts/internal/storage"
)

// observationFile is the on-disk form of one observation batch: a JSON
// array of listing sightings as produced by external feed collectors.
type observationFile []observationRecord

type observationRecord struct {
	ProductID      string `json:"product_id"`
	Source         string `json:"source"`
	SourceNativeID string `json:"source_native_id"`
	Kind           string `json:"kind"`
	Price          int64  `json:"price"`
	Currency       string `json:"currency"`
	InStock        bool   `json:"in_stock"`
	StockQty       int    `json:"stock_qty"`
	URL            string `json:"url"`
	SeenAt         string `json:"seen_at"`

	SizeStandard string `json:"size_standard"`
	SizeValue    string `json:"size_value"`
	Gender       string `json:"gender"`
	Brand        string `json:"brand"`
	Category     string `json:"category"`

	CrossCheckStandard string `json:"cross_check_standard"`
	CrossCheckValue    string `json:"cross_check_value"`
}

// Ingest reads an observation batch from a JSON file and upserts each
// record. Rejected records (unmapped sizes, malformed rows) are logged and
// skipped; the rest of the batch still lands.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	raw, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read observations file: %w", err)
	}

	var batch observationFile
	if err := json.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("parse observations file: %w", err)
	}
	if len(batch) == 0 {
		a.Logger.Info().Msg("observations file is empty")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	index, err := a.loadSizeIndex(ctx, store)
	if err != nil {
		return err
	}

	svc := a.newService(store, index)

	var stored, changed, skipped int
	for i, record := range batch {
		obs, convErr := record.toObservation()
		if convErr != nil {
			skipped++
			a.Logger.Warn().Int("record", i).Err(convErr).Msg("skipping malformed observation")
			continue
		}

		_, didChange, ingErr := svc.IngestObservation(ctx, obs)
		if ingErr != nil {
			if recordRejected(ingErr) {
				skipped++
				a.Logger.Warn().Int("record", i).Err(ingErr).Msg("skipping rejected observation")
				continue
			}
			return fmt.Errorf("ingest record %d: %w", i, ingErr)
		}
		stored++
		if didChange {
			changed++
		}
	}

	a.Logger.Info().
		Int("stored", stored).
		Int("changed", changed).
		Int("skipped", skipped).
		Msg("observation batch ingested")
	fmt.Fprintf(os.Stdout, "stored %d observations (%d changed, %d skipped)\n", stored, changed, skipped)
	return nil
}

// recordRejected distinguishes per-record rejections (bad fields, unmapped
// sizes) from infrastructure failures that abort the rest of the batch.
func recordRejected(err error) bool {
	return errors.Is(err, sizing.ErrNotFound) || errors.Is(err, service.ErrInvalidObservation)
}

func (r observationRecord) toObservation() (service.Observation, error) {
	productID, err := uuid.Parse(r.ProductID)
	if err != nil {
		return service.Observation{}, fmt.Errorf("invalid product_id %q: %w", r.ProductID, err)
	}

	obs := service.Observation{
		ProductID:      productID,
		Source:         r.Source,
		SourceNativeID: r.SourceNativeID,
		Kind:           storage.OfferKind(r.Kind),
		Price:          r.Price,
		Currency:       r.Currency,
		InStock:        r.InStock,
		StockQty:       r.StockQty,
		URL:            r.URL,
		SizeStandard:   sizing.Standard(r.SizeStandard),
		SizeValue:      r.SizeValue,
		Gender:         sizing.Gender(r.Gender),
		Brand:          r.Brand,
		Category:       r.Category,
	}

	if r.SeenAt != "" {
		seen, err := time.Parse(time.RFC3339, r.SeenAt)
		if err != nil {
			return service.Observation{}, fmt.Errorf("invalid seen_at %q: %w", r.SeenAt, err)
		}
		obs.SeenAt = seen.UTC()
	}

	if r.CrossCheckValue != "" {
		value, err := decimal.NewFromString(r.CrossCheckValue)
		if err != nil {
			return service.Observation{}, fmt.Errorf("invalid cross_check_value %q: %w", r.CrossCheckValue, err)
		}
		obs.CrossCheckStandard = sizing.Standard(r.CrossCheckStandard)
		obs.CrossCheckValue = decimal.NewNullDecimal(value)
	}

	return obs, nil
}
