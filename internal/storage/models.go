package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferKind classifies which side of a flip an offer can sit on.
type OfferKind string

const (
	KindRetail    OfferKind = "retail"
	KindResale    OfferKind = "resale"
	KindAuction   OfferKind = "auction"
	KindWholesale OfferKind = "wholesale"
)

// RiskLevel buckets an opportunity's risk for alert filtering.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Rank orders risk levels for max-risk filtering.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// Offer is the latest known listing from one source for one product at one
// (possibly absent) size. At most one live offer exists per natural key
// (product_id, source, source_native_id, canonical_size_id); re-ingestion
// updates in place. Prices are integer minor-currency units.
type Offer struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	CanonicalSizeID uuid.NullUUID
	Source          string
	SourceNativeID  string
	Kind            OfferKind
	Price           int64
	Currency        string
	InStock         bool
	StockQty        int
	URL             string
	LastSeenAt      time.Time
	CreatedAt       time.Time
}

// OfferHistory is one append-only observation, written whenever price or
// in_stock changed. Never updated or deleted.
type OfferHistory struct {
	ID         int64
	OfferID    uuid.UUID
	Price      int64
	InStock    bool
	RecordedAt time.Time
}

// AlertRule is one user's alert configuration plus its scheduler
// bookkeeping.
type AlertRule struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string
	Active  bool

	// Filter criteria.
	MinMarginPct        decimal.Decimal
	MinProfit           int64
	MaxBuyPrice         *int64
	MinFeasibilityScore int
	MaxRiskLevel        RiskLevel
	SourceFilter        string
	ExtraFilters        map[string]string

	// Delivery.
	WebhookURL             string
	MaxOpportunities       int
	IncludeDemandBreakdown bool
	IncludeRiskDetails     bool

	// Cadence. ActiveHoursStart/End are "HH:MM" in the rule's timezone;
	// both empty means always eligible. ActiveDays holds lowercase weekday
	// names; empty means every day.
	IntervalMinutes  int
	ActiveHoursStart string
	ActiveHoursEnd   string
	ActiveDays       []string
	Timezone         string

	// Bookkeeping.
	LastScannedAt          *time.Time
	LastTriggeredAt        *time.Time
	TotalAlertsSent        int64
	TotalOpportunitiesSent int64
	LastError              *string
	LastErrorAt            *time.Time

	CreatedAt time.Time
}

var weekdayNames = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

var percentHundred = decimal.NewFromInt(100)

// Validate rejects malformed rules. Invalid rules are never persisted.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.WebhookURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	if r.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be greater than zero")
	}
	if r.MinMarginPct.IsNegative() || r.MinMarginPct.GreaterThan(percentHundred) {
		return fmt.Errorf("min_margin_pct must be within [0,100]")
	}
	if r.MinProfit < 0 {
		return fmt.Errorf("min_profit cannot be negative")
	}
	if r.MaxBuyPrice != nil && *r.MaxBuyPrice <= 0 {
		return fmt.Errorf("max_buy_price must be greater than zero")
	}
	if r.MinFeasibilityScore < 0 || r.MinFeasibilityScore > 100 {
		return fmt.Errorf("min_feasibility_score must be within [0,100]")
	}
	if r.MaxRiskLevel.Rank() > RiskHigh.Rank() {
		return fmt.Errorf("max_risk_level must be LOW, MEDIUM, or HIGH")
	}
	if r.MaxOpportunities <= 0 {
		return fmt.Errorf("max_opportunities_per_alert must be greater than zero")
	}
	if (r.ActiveHoursStart == "") != (r.ActiveHoursEnd == "") {
		return fmt.Errorf("active_hours_start and active_hours_end must be set together")
	}
	if r.ActiveHoursStart != "" {
		if _, err := ParseDayTime(r.ActiveHoursStart); err != nil {
			return fmt.Errorf("active_hours_start: %w", err)
		}
		if _, err := ParseDayTime(r.ActiveHoursEnd); err != nil {
			return fmt.Errorf("active_hours_end: %w", err)
		}
	}
	for _, day := range r.ActiveDays {
		if _, ok := weekdayNames[strings.ToLower(day)]; !ok {
			return fmt.Errorf("unknown weekday %q in active_days", day)
		}
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
		}
	}
	return nil
}

// DayTime is a wall-clock minute of day.
type DayTime struct {
	Hour   int
	Minute int
}

// ParseDayTime parses "HH:MM".
func ParseDayTime(v string) (DayTime, error) {
	parsed, err := time.Parse("15:04", v)
	if err != nil {
		return DayTime{}, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return DayTime{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Minutes returns minutes since midnight.
func (d DayTime) Minutes() int {
	return d.Hour*60 + d.Minute
}

// DeliveryRecord marks one opportunity as delivered for one rule, keyed by
// (alert_id, fingerprint). Retained for a bounded window, then pruned.
type DeliveryRecord struct {
	AlertID     uuid.UUID
	Fingerprint string
	SentAt      time.Time
}
