package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validRule() AlertRule {
	return AlertRule{
		Name:             "eu flips",
		WebhookURL:       "https://hooks.example.com/abc",
		MinMarginPct:     decimal.RequireFromString("20"),
		MaxOpportunities: 10,
		IntervalMinutes:  15,
		Timezone:         "Europe/Berlin",
	}
}

func TestAlertRuleValidate(t *testing.T) {
	valid := validRule()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(*AlertRule)
	}{
		{"missing name", func(r *AlertRule) { r.Name = "" }},
		{"missing webhook", func(r *AlertRule) { r.WebhookURL = "" }},
		{"zero interval", func(r *AlertRule) { r.IntervalMinutes = 0 }},
		{"negative margin", func(r *AlertRule) { r.MinMarginPct = decimal.RequireFromString("-1") }},
		{"margin above 100", func(r *AlertRule) { r.MinMarginPct = decimal.RequireFromString("101") }},
		{"negative profit", func(r *AlertRule) { r.MinProfit = -1 }},
		{"zero max buy", func(r *AlertRule) { zero := int64(0); r.MaxBuyPrice = &zero }},
		{"feasibility above 100", func(r *AlertRule) { r.MinFeasibilityScore = 101 }},
		{"unknown risk level", func(r *AlertRule) { r.MaxRiskLevel = RiskLevel("EXTREME") }},
		{"zero batch size", func(r *AlertRule) { r.MaxOpportunities = 0 }},
		{"unpaired hours", func(r *AlertRule) { r.ActiveHoursStart = "09:00" }},
		{"malformed hours", func(r *AlertRule) { r.ActiveHoursStart = "9am"; r.ActiveHoursEnd = "22:00" }},
		{"bad weekday", func(r *AlertRule) { r.ActiveDays = []string{"funday"} }},
		{"bad timezone", func(r *AlertRule) { r.Timezone = "Mars/Olympus" }},
	}

	for _, tc := range mutations {
		rule := validRule()
		tc.mutate(&rule)
		if err := rule.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestAlertRuleValidateAcceptsWindow(t *testing.T) {
	rule := validRule()
	rule.ActiveHoursStart = "22:00"
	rule.ActiveHoursEnd = "06:00"
	rule.ActiveDays = []string{"Saturday", "sunday"}

	if err := rule.Validate(); err != nil {
		t.Fatalf("midnight-spanning window should validate: %v", err)
	}
}

func TestParseDayTime(t *testing.T) {
	dt, err := ParseDayTime("09:30")
	if err != nil {
		t.Fatalf("ParseDayTime: %v", err)
	}
	if dt.Minutes() != 570 {
		t.Fatalf("minutes = %d, want 570", dt.Minutes())
	}

	if _, err := ParseDayTime("25:00"); err == nil {
		t.Fatal("25:00 must be rejected")
	}
}

func TestRiskLevelRank(t *testing.T) {
	if !(RiskLow.Rank() < RiskMedium.Rank() && RiskMedium.Rank() < RiskHigh.Rank()) {
		t.Fatal("risk levels must rank LOW < MEDIUM < HIGH")
	}
	if RiskLevel("EXTREME").Rank() <= RiskHigh.Rank() {
		t.Fatal("unknown levels must rank above HIGH")
	}
}
