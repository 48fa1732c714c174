package ledger

import (
	"strings"
	"time"

	"sneaker-arb-alerts/internal/storage"
)

// Scorer annotates an opportunity with the demand, risk, and feasibility
// signals the alert filters consume. Callers with richer data (sales
// history, price trends) can plug in their own implementation.
type Scorer interface {
	Assess(opp *Opportunity)
}

// Risk factor weights.
const (
	weightDemandRisk     = 0.30
	weightVolatilityRisk = 0.25
	weightStockRisk      = 0.20
	weightMarginRisk     = 0.15
	weightPlatformRisk   = 0.10

	lowRiskThreshold    = 30
	mediumRiskThreshold = 60
)

// Feasibility component weights.
const (
	weightDemand      = 0.40
	weightInverseRisk = 0.30
	weightMargin      = 0.20
	weightStock       = 0.10
)

// Platform reliability, 0-100, higher is more reliable. Unknown platforms
// default to 60.
var platformReliability = map[string]int{
	"stockx":   95,
	"goat":     90,
	"alias":    90,
	"ebay":     75,
	"klekt":    70,
	"awin":     60,
	"webgains": 60,
}

// Monthly demand factor for sneakers; holiday season runs hot, late summer
// runs cold.
var seasonalFactor = map[time.Month]float64{
	time.January:   0.85,
	time.February:  0.90,
	time.March:     0.95,
	time.April:     1.00,
	time.May:       1.00,
	time.June:      0.95,
	time.July:      0.90,
	time.August:    0.95,
	time.September: 1.05,
	time.October:   1.10,
	time.November:  1.20,
	time.December:  1.25,
}

// HeuristicScorer derives quality signals from what the ledger itself
// knows: stock depth, margin, platform, and calendar seasonality. Signals
// that need sales history (frequency, price trend) sit at a neutral 50.
type HeuristicScorer struct {
	now func() time.Time
}

// NewHeuristicScorer builds the default scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{now: time.Now}
}

// Assess fills the enrichment fields on an opportunity.
func (s *HeuristicScorer) Assess(opp *Opportunity) {
	stockScore := stockAvailabilityScore(opp.Retail.StockQty)
	seasonal := seasonalScore(s.now().UTC().Month())
	margin := opp.MarginPct.InexactFloat64()

	// Demand composite; unavailable components stay neutral.
	demand := 50*0.40 + 50*0.25 + stockScore*0.20 + seasonal*0.10 + 50*0.05
	demand = clamp(demand)

	marginScore := clamp(margin / 50 * 100)

	risk := float64(100-int(demand))*weightDemandRisk +
		50*weightVolatilityRisk +
		(100-stockScore)*weightStockRisk +
		marginRiskScore(margin)*weightMarginRisk +
		float64(platformRisk(opp.Resale.Source))*weightPlatformRisk
	riskScore := int(clamp(risk))

	feasibility := demand*weightDemand +
		float64(100-riskScore)*weightInverseRisk +
		marginScore*weightMargin +
		stockScore*weightStock

	opp.DemandScore = demand
	opp.DemandBreakdown = map[string]float64{
		"stock_turnover": stockScore,
		"seasonal":       seasonal,
		"margin":         marginScore,
	}
	opp.RiskScore = riskScore
	opp.RiskLevel = riskLevelFor(riskScore)
	opp.RiskFactors = map[string]string{
		"stock":    stockBand(opp.Retail.StockQty),
		"platform": strings.ToLower(opp.Resale.Source),
	}
	opp.FeasibilityScore = int(clamp(feasibility))
	opp.EstimatedDays = estimateDaysToSell(demand)
}

func stockAvailabilityScore(qty int) float64 {
	switch {
	case qty <= 0:
		return 0
	case qty <= 5:
		return 50
	case qty <= 20:
		return 75
	default:
		return 100
	}
}

func stockBand(qty int) string {
	switch {
	case qty <= 0:
		return "none"
	case qty <= 5:
		return "scarce"
	case qty <= 20:
		return "limited"
	default:
		return "deep"
	}
}

func marginRiskScore(marginPct float64) float64 {
	switch {
	case marginPct < 10:
		return 80
	case marginPct < 20:
		return 50
	case marginPct < 35:
		return 30
	default:
		return 10
	}
}

func platformRisk(source string) int {
	reliability, ok := platformReliability[strings.ToLower(source)]
	if !ok {
		reliability = 60
	}
	return 100 - reliability
}

func riskLevelFor(score int) storage.RiskLevel {
	switch {
	case score < lowRiskThreshold:
		return storage.RiskLow
	case score <= mediumRiskThreshold:
		return storage.RiskMedium
	default:
		return storage.RiskHigh
	}
}

func seasonalScore(month time.Month) float64 {
	factor, ok := seasonalFactor[month]
	if !ok {
		factor = 1.0
	}
	if factor >= 1.0 {
		return clamp(60 + ((factor-1.0)/0.25)*40)
	}
	return clamp(60 - ((1.0-factor)/0.15)*20)
}

func estimateDaysToSell(demand float64) int {
	switch {
	case demand >= 80:
		return 7
	case demand >= 60:
		return 14
	case demand >= 40:
		return 30
	case demand >= 20:
		return 60
	default:
		return 90
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
