package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/storage"
)

// OfferSource provides the live offer snapshot the engine matches over.
type OfferSource interface {
	ListLiveOffers(ctx context.Context, kinds []storage.OfferKind) ([]storage.Offer, error)
}

// Filter narrows the derived opportunity set. Margin and feasibility
// boundaries are inclusive.
type Filter struct {
	MinMarginPct   decimal.Decimal
	MinProfit      int64
	MaxBuyPrice    *int64
	MinFeasibility int
	MaxRisk        storage.RiskLevel
	Source         string
	MinDemandScore float64
	Limit          int
}

// Result carries the ranked opportunities plus every pair excluded for
// quoting mixed currencies; exclusions are reported, never swallowed.
type Result struct {
	Opportunities []Opportunity
	Mismatches    []*CurrencyMismatchError
}

// Engine derives opportunities from the offer ledger.
type Engine struct {
	offers OfferSource
	scorer Scorer
	logger zerolog.Logger
}

// NewEngine builds a matching engine. A nil scorer falls back to the
// built-in heuristic scorer.
func NewEngine(offers OfferSource, scorer Scorer, logger zerolog.Logger) *Engine {
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}
	return &Engine{
		offers: offers,
		scorer: scorer,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

type matchKey struct {
	productID uuid.UUID
	sizeID    uuid.UUID
	sized     bool
}

func keyFor(offer storage.Offer) matchKey {
	key := matchKey{productID: offer.ProductID}
	if offer.CanonicalSizeID.Valid {
		key.sizeID = offer.CanonicalSizeID.UUID
		key.sized = true
	}
	return key
}

// ListOpportunities derives the current opportunity set, ordered by score
// descending, ties broken by profit descending, then by earliest retail
// last_seen_at (oldest offers surface first since they are the most likely
// to expire). Two offers pair iff they share a product, both are in stock,
// one is retail and one resale, and they agree on canonical size (sizeless
// pairs only with sizeless).
func (e *Engine) ListOpportunities(ctx context.Context, filter Filter) (Result, error) {
	offers, err := e.offers.ListLiveOffers(ctx, []storage.OfferKind{storage.KindRetail, storage.KindResale})
	if err != nil {
		return Result{}, fmt.Errorf("load live offers: %w", err)
	}

	retailByKey := make(map[matchKey][]storage.Offer)
	resaleByKey := make(map[matchKey][]storage.Offer)
	for _, offer := range offers {
		if !offer.InStock {
			continue
		}
		switch offer.Kind {
		case storage.KindRetail:
			if filter.Source != "" && !strings.EqualFold(offer.Source, filter.Source) {
				continue
			}
			retailByKey[keyFor(offer)] = append(retailByKey[keyFor(offer)], offer)
		case storage.KindResale:
			resaleByKey[keyFor(offer)] = append(resaleByKey[keyFor(offer)], offer)
		}
	}

	var result Result
	for key, retails := range retailByKey {
		resales, ok := resaleByKey[key]
		if !ok {
			continue
		}
		for _, retail := range retails {
			for _, resale := range resales {
				opp, mismatch := e.pair(retail, resale)
				if mismatch != nil {
					result.Mismatches = append(result.Mismatches, mismatch)
					continue
				}
				if opp == nil {
					continue
				}
				e.scorer.Assess(opp)
				if !e.accept(opp, filter) {
					continue
				}
				result.Opportunities = append(result.Opportunities, *opp)
			}
		}
	}

	sortOpportunities(result.Opportunities)
	if filter.Limit > 0 && len(result.Opportunities) > filter.Limit {
		result.Opportunities = result.Opportunities[:filter.Limit]
	}

	for _, mismatch := range result.Mismatches {
		e.logger.Warn().
			Str("product_id", mismatch.ProductID.String()).
			Str("retail_currency", mismatch.RetailCurrency).
			Str("resale_currency", mismatch.ResaleCurrency).
			Msg("pair excluded: currency mismatch")
	}

	return result, nil
}

func (e *Engine) pair(retail, resale storage.Offer) (*Opportunity, *CurrencyMismatchError) {
	if !strings.EqualFold(retail.Currency, resale.Currency) {
		return nil, &CurrencyMismatchError{
			ProductID:      retail.ProductID,
			RetailOfferID:  retail.ID,
			ResaleOfferID:  resale.ID,
			RetailCurrency: retail.Currency,
			ResaleCurrency: resale.Currency,
		}
	}

	profit := resale.Price - retail.Price
	if profit <= 0 || retail.Price <= 0 {
		return nil, nil
	}

	margin := decimal.NewFromInt(profit).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(retail.Price)).
		Round(2)
	score := decimal.NewFromInt(profit).
		Div(decimal.NewFromInt(100)).
		Mul(margin).
		Round(2)

	return &Opportunity{
		ProductID:       retail.ProductID,
		CanonicalSizeID: retail.CanonicalSizeID,
		Retail:          retail,
		Resale:          resale,
		Currency:        strings.ToUpper(retail.Currency),
		Profit:          profit,
		MarginPct:       margin,
		Score:           score,
	}, nil
}

func (e *Engine) accept(opp *Opportunity, filter Filter) bool {
	if opp.MarginPct.LessThan(filter.MinMarginPct) {
		return false
	}
	if opp.Profit < filter.MinProfit {
		return false
	}
	if filter.MaxBuyPrice != nil && opp.Retail.Price > *filter.MaxBuyPrice {
		return false
	}
	if opp.FeasibilityScore < filter.MinFeasibility {
		return false
	}
	if filter.MaxRisk != "" && opp.RiskLevel.Rank() > filter.MaxRisk.Rank() {
		return false
	}
	if opp.DemandScore < filter.MinDemandScore {
		return false
	}
	return true
}

func sortOpportunities(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if cmp := opps[i].Score.Cmp(opps[j].Score); cmp != 0 {
			return cmp > 0
		}
		if opps[i].Profit != opps[j].Profit {
			return opps[i].Profit > opps[j].Profit
		}
		return opps[i].Retail.LastSeenAt.Before(opps[j].Retail.LastSeenAt)
	})
}
