package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"sneaker-arb-alerts/internal/ledger"
)

// Show prints the current top opportunities across the whole ledger,
// unfiltered except for the row limit.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	index, err := a.loadSizeIndex(ctx, store)
	if err != nil {
		return err
	}

	engine := ledger.NewEngine(store, nil, a.Logger)
	result, err := engine.ListOpportunities(ctx, ledger.Filter{Limit: opts.Limit})
	if err != nil {
		return err
	}
	if len(result.Opportunities) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tSize\tBuy\tSell\tProfit\tMargin%\tScore\tRisk\tFeas\tDays")

	for _, opp := range result.Opportunities {
		size := ""
		if opp.CanonicalSizeID.Valid {
			if cs, ok := index.ByID(opp.CanonicalSizeID.UUID); ok {
				size = cs.Label()
			}
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s %d\t%s %d\t%d\t%s\t%s\t%s\t%d\t%d\n",
			opp.ProductID,
			size,
			opp.Retail.Source,
			opp.Retail.Price,
			opp.Resale.Source,
			opp.Resale.Price,
			opp.Profit,
			opp.MarginPct.StringFixed(2),
			opp.Score.StringFixed(2),
			opp.RiskLevel,
			opp.FeasibilityScore,
			opp.EstimatedDays,
		)
	}

	writer.Flush()
	return nil
}
