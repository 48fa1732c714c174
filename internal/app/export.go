package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"sneaker-arb-alerts/internal/storage"
)

// Export renders one offer's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	offer, err := store.GetOffer(ctx, opts.OfferID)
	if err != nil {
		return fmt.Errorf("load offer %s: %w", opts.OfferID, err)
	}

	history, err := store.ListOfferHistory(ctx, offer.ID)
	if err != nil {
		return err
	}

	history = clipHistory(history, opts.From, opts.To)
	if len(history) == 0 {
		a.Logger.Info().Msg("no history found for export window")
		return nil
	}

	downsampled := downsampleHistory(history, opts.MaxPoints)
	a.Logger.Info().
		Str("offer_id", offer.ID.String()).
		Int("total", len(history)).
		Int("exported", len(downsampled)).
		Msg("exporting offer history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, offer, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, offer, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func clipHistory(entries []storage.OfferHistory, from, to *time.Time) []storage.OfferHistory {
	out := entries[:0]
	for _, entry := range entries {
		if from != nil && entry.RecordedAt.Before(*from) {
			continue
		}
		if to != nil && entry.RecordedAt.After(*to) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func downsampleHistory(entries []storage.OfferHistory, max int) []storage.OfferHistory {
	if max <= 0 || len(entries) <= max {
		return entries
	}

	result := make([]storage.OfferHistory, 0, max)
	step := float64(len(entries)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(entries) {
			idx = len(entries) - 1
		}
		result = append(result, entries[idx])
	}
	return result
}

func writeHistoryCSV(path string, offer storage.Offer, entries []storage.OfferHistory) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "price_minor", "currency", "in_stock", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		record := []string{
			entry.RecordedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(entry.Price, 10),
			offer.Currency,
			strconv.FormatBool(entry.InStock),
			offer.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, offer storage.Offer, entries []storage.OfferHistory) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(entries))
	price := make([]float64, len(entries))
	stocked := make([]float64, len(entries))

	var maxPrice float64
	for i, entry := range entries {
		x[i] = entry.RecordedAt
		price[i] = float64(entry.Price) / 100
		if price[i] > maxPrice {
			maxPrice = price[i]
		}
	}
	for i, entry := range entries {
		if entry.InStock {
			stocked[i] = maxPrice
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + offer.Currency + ")",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    offer.Source + " price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "In stock",
				XValues: x,
				YValues: stocked,
				Style: chart.Style{
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
