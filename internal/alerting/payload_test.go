package alerting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/ledger"
	"sneaker-arb-alerts/internal/storage"
)

func testOpportunity(profit int64, margin string) ledger.Opportunity {
	return ledger.Opportunity{
		ProductID:       uuid.New(),
		CanonicalSizeID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Retail:          storage.Offer{Source: "awin", Price: 12000},
		Resale:          storage.Offer{Source: "stockx", Price: 12000 + profit},
		Currency:        "EUR",
		Profit:          profit,
		MarginPct:       decimal.RequireFromString(margin),
		Score:           decimal.RequireFromString(margin).Mul(decimal.NewFromInt(profit / 100)),
		DemandBreakdown: map[string]float64{"stock_turnover": 75},
		RiskScore:       35,
		RiskLevel:       storage.RiskMedium,
		RiskFactors:     map[string]string{"platform": "stockx"},
	}
}

func TestBuildNotificationSummary(t *testing.T) {
	rule := storage.AlertRule{ID: uuid.New(), Name: "eu flips"}
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	note := BuildNotification(rule, []ledger.Opportunity{
		testOpportunity(6000, "50.00"),
		testOpportunity(3000, "25.00"),
	}, func(id uuid.NullUUID) string { return "US 9 (men)" }, now)

	if note.RuleName != "eu flips" || note.GeneratedAt != now {
		t.Fatalf("header wrong: %+v", note)
	}
	if note.Summary.TotalOpportunities != 2 {
		t.Fatalf("total = %d, want 2", note.Summary.TotalOpportunities)
	}
	if note.Summary.TotalPotentialProfit != 9000 {
		t.Fatalf("profit sum = %d, want 9000", note.Summary.TotalPotentialProfit)
	}
	if note.Summary.AvgMarginPct != "37.50" {
		t.Fatalf("avg margin = %s, want 37.50", note.Summary.AvgMarginPct)
	}
	if note.Opportunities[0].Size != "US 9 (men)" {
		t.Fatalf("size label = %q", note.Opportunities[0].Size)
	}
	if note.DemandBreakdown != nil || note.RiskDetails != nil {
		t.Fatal("detail blocks must be omitted unless the rule asks for them")
	}
}

func TestBuildNotificationDetailBlocks(t *testing.T) {
	rule := storage.AlertRule{
		ID:                     uuid.New(),
		Name:                   "verbose",
		IncludeDemandBreakdown: true,
		IncludeRiskDetails:     true,
	}

	opp := testOpportunity(6000, "50.00")
	note := BuildNotification(rule, []ledger.Opportunity{opp}, nil, time.Now().UTC())

	breakdown, ok := note.DemandBreakdown[opp.ProductID.String()]
	if !ok || breakdown["stock_turnover"] != 75 {
		t.Fatalf("demand breakdown missing: %+v", note.DemandBreakdown)
	}
	risk, ok := note.RiskDetails[opp.ProductID.String()]
	if !ok || risk.RiskScore != 35 || risk.RiskLevel != string(storage.RiskMedium) {
		t.Fatalf("risk details missing: %+v", note.RiskDetails)
	}
}

func TestBuildNotificationEmptyBatch(t *testing.T) {
	note := BuildNotification(storage.AlertRule{ID: uuid.New()}, nil, nil, time.Now().UTC())
	if note.Summary.AvgMarginPct != "0.00" || note.Summary.TotalOpportunities != 0 {
		t.Fatalf("empty summary wrong: %+v", note.Summary)
	}
}
