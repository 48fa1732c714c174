package alerting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/ledger"
	"sneaker-arb-alerts/internal/storage"
)

// OpportunityPayload is one opportunity as rendered to the webhook.
// Decimal fields are fixed two-decimal strings; prices stay integer
// minor-currency units.
type OpportunityPayload struct {
	ProductID           string `json:"product_id"`
	Size                string `json:"size,omitempty"`
	RetailSource        string `json:"retail_source"`
	RetailPrice         int64  `json:"retail_price"`
	ResaleSource        string `json:"resale_source"`
	ResalePrice         int64  `json:"resale_price"`
	Currency            string `json:"currency"`
	Profit              int64  `json:"profit"`
	MarginPct           string `json:"margin_pct"`
	OpportunityScore    string `json:"opportunity_score"`
	FeasibilityScore    int    `json:"feasibility_score"`
	RiskLevel           string `json:"risk_level"`
	EstimatedDaysToSell int    `json:"estimated_days_to_sell"`
}

// Summary aggregates the delivered batch.
type Summary struct {
	TotalOpportunities   int    `json:"total_opportunities"`
	AvgMarginPct         string `json:"avg_margin_pct"`
	TotalPotentialProfit int64  `json:"total_potential_profit"`
}

// RiskDetail is the optional per-product risk expansion.
type RiskDetail struct {
	RiskScore int               `json:"risk_score"`
	RiskLevel string            `json:"risk_level"`
	Factors   map[string]string `json:"factors"`
}

// Notification is the webhook body. A 2xx response counts as delivered.
type Notification struct {
	RuleID          string                        `json:"rule_id"`
	RuleName        string                        `json:"rule_name"`
	GeneratedAt     time.Time                     `json:"generated_at"`
	Opportunities   []OpportunityPayload          `json:"opportunities"`
	Summary         Summary                       `json:"summary"`
	DemandBreakdown map[string]map[string]float64 `json:"demand_breakdown,omitempty"`
	RiskDetails     map[string]RiskDetail         `json:"risk_details,omitempty"`
}

// SizeLabeler renders a canonical size id for humans; empty string for
// sizeless offers.
type SizeLabeler func(id uuid.NullUUID) string

// BuildNotification assembles the webhook body for one rule's delivered
// batch. Breakdown maps are keyed by product id and only attached when the
// rule asks for them.
func BuildNotification(rule storage.AlertRule, opps []ledger.Opportunity, labelSize SizeLabeler, now time.Time) Notification {
	note := Notification{
		RuleID:        rule.ID.String(),
		RuleName:      rule.Name,
		GeneratedAt:   now.UTC(),
		Opportunities: make([]OpportunityPayload, 0, len(opps)),
	}

	marginSum := decimal.Zero
	for _, opp := range opps {
		size := ""
		if labelSize != nil {
			size = labelSize(opp.CanonicalSizeID)
		}
		note.Opportunities = append(note.Opportunities, OpportunityPayload{
			ProductID:           opp.ProductID.String(),
			Size:                size,
			RetailSource:        opp.Retail.Source,
			RetailPrice:         opp.Retail.Price,
			ResaleSource:        opp.Resale.Source,
			ResalePrice:         opp.Resale.Price,
			Currency:            opp.Currency,
			Profit:              opp.Profit,
			MarginPct:           opp.MarginPct.StringFixed(2),
			OpportunityScore:    opp.Score.StringFixed(2),
			FeasibilityScore:    opp.FeasibilityScore,
			RiskLevel:           string(opp.RiskLevel),
			EstimatedDaysToSell: opp.EstimatedDays,
		})

		marginSum = marginSum.Add(opp.MarginPct)
		note.Summary.TotalPotentialProfit += opp.Profit

		if rule.IncludeDemandBreakdown {
			if note.DemandBreakdown == nil {
				note.DemandBreakdown = make(map[string]map[string]float64)
			}
			note.DemandBreakdown[opp.ProductID.String()] = opp.DemandBreakdown
		}
		if rule.IncludeRiskDetails {
			if note.RiskDetails == nil {
				note.RiskDetails = make(map[string]RiskDetail)
			}
			note.RiskDetails[opp.ProductID.String()] = RiskDetail{
				RiskScore: opp.RiskScore,
				RiskLevel: string(opp.RiskLevel),
				Factors:   opp.RiskFactors,
			}
		}
	}

	note.Summary.TotalOpportunities = len(opps)
	if len(opps) > 0 {
		note.Summary.AvgMarginPct = marginSum.Div(decimal.NewFromInt(int64(len(opps)))).StringFixed(2)
	} else {
		note.Summary.AvgMarginPct = "0.00"
	}
	return note
}
