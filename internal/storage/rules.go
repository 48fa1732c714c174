package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertRuleSQL = `INSERT INTO alert_rules (
        id, owner_id, name, active,
        min_margin_pct, min_profit, max_buy_price,
        min_feasibility_score, max_risk_level, source_filter, extra_filters,
        webhook_url, max_opportunities, include_demand_breakdown, include_risk_details,
        interval_minutes, active_hours_start, active_hours_end, active_days, timezone
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
    )
    RETURNING created_at;`

	ruleColumns = `id, owner_id, name, active,
        min_margin_pct, min_profit, max_buy_price,
        min_feasibility_score, max_risk_level, source_filter, extra_filters,
        webhook_url, max_opportunities, include_demand_breakdown, include_risk_details,
        interval_minutes, active_hours_start, active_hours_end, active_days, timezone,
        last_scanned_at, last_triggered_at, total_alerts_sent, total_opportunities_sent,
        last_error, last_error_at, created_at`

	getRuleSQL = `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1;`

	listActiveRulesSQL = `SELECT ` + ruleColumns + ` FROM alert_rules WHERE active ORDER BY created_at;`

	// The claim is the lock: compare-and-set on last_scanned_at means two
	// workers can never scan the same rule concurrently.
	claimRuleSQL = `UPDATE alert_rules
    SET last_scanned_at = $3
    WHERE id = $1
      AND active
      AND last_scanned_at IS NOT DISTINCT FROM $2;`

	recordDeliverySQL = `UPDATE alert_rules
    SET total_alerts_sent        = total_alerts_sent + 1,
        total_opportunities_sent = total_opportunities_sent + $2,
        last_triggered_at        = $3,
        last_error               = NULL,
        last_error_at            = NULL
    WHERE id = $1;`

	recordFailureSQL = `UPDATE alert_rules
    SET last_error    = $2,
        last_error_at = $3
    WHERE id = $1;`
)

// InsertRule validates and persists a new alert rule. Malformed rules are
// rejected here and never stored.
func (s *Store) InsertRule(ctx context.Context, rule AlertRule) (AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return AlertRule{}, fmt.Errorf("invalid alert rule: %w", err)
	}

	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.Timezone == "" {
		rule.Timezone = "UTC"
	}

	var extra []byte
	if len(rule.ExtraFilters) > 0 {
		extra, err = json.Marshal(rule.ExtraFilters)
		if err != nil {
			return AlertRule{}, fmt.Errorf("marshal extra filters: %w", err)
		}
	}

	var maxBuy interface{}
	if rule.MaxBuyPrice != nil {
		maxBuy = *rule.MaxBuyPrice
	}
	var hoursStart, hoursEnd interface{}
	if rule.ActiveHoursStart != "" {
		hoursStart = rule.ActiveHoursStart
		hoursEnd = rule.ActiveHoursEnd
	}

	row := pool.QueryRow(ctx, insertRuleSQL,
		rule.ID, rule.OwnerID, rule.Name, rule.Active,
		rule.MinMarginPct.String(), rule.MinProfit, maxBuy,
		rule.MinFeasibilityScore, string(rule.MaxRiskLevel), rule.SourceFilter, extra,
		rule.WebhookURL, rule.MaxOpportunities, rule.IncludeDemandBreakdown, rule.IncludeRiskDetails,
		rule.IntervalMinutes, hoursStart, hoursEnd, rule.ActiveDays, rule.Timezone,
	)
	if scanErr := row.Scan(&rule.CreatedAt); scanErr != nil {
		return AlertRule{}, fmt.Errorf("insert alert rule: %w", scanErr)
	}
	return rule, nil
}

// GetRule fetches one rule by id.
func (s *Store) GetRule(ctx context.Context, id uuid.UUID) (AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	rows, queryErr := pool.Query(ctx, getRuleSQL, id)
	if queryErr != nil {
		return AlertRule{}, fmt.Errorf("get rule: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return AlertRule{}, rows.Err()
		}
		return AlertRule{}, pgx.ErrNoRows
	}
	return scanRule(rows)
}

// ListActiveRules lists every active rule, oldest first.
func (s *Store) ListActiveRules(ctx context.Context) ([]AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveRulesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active rules: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]AlertRule, 0)
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// ClaimRule atomically advances last_scanned_at from the previously
// observed value to now. A false return means another worker won the claim
// (or the rule was deactivated meanwhile).
func (s *Store) ClaimRule(ctx context.Context, id uuid.UUID, previous *time.Time, now time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var prev interface{}
	if previous != nil {
		prev = *previous
	}

	tag, execErr := pool.Exec(ctx, claimRuleSQL, id, prev, now)
	if execErr != nil {
		return false, fmt.Errorf("claim rule: %w", execErr)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordDelivery bumps counters after a successful webhook dispatch and
// clears any previous error.
func (s *Store) RecordDelivery(ctx context.Context, id uuid.UUID, opportunities int, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, recordDeliverySQL, id, opportunities, at); execErr != nil {
		return fmt.Errorf("record delivery: %w", execErr)
	}
	return nil
}

// RecordFailure stores the last delivery error. Failure never deactivates
// the rule.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(message) > 1000 {
		message = message[:1000]
	}
	if _, execErr := pool.Exec(ctx, recordFailureSQL, id, message, at); execErr != nil {
		return fmt.Errorf("record failure: %w", execErr)
	}
	return nil
}

func scanRule(rows pgx.Rows) (AlertRule, error) {
	var (
		rule       AlertRule
		marginStr  string
		maxBuy     *int64
		extra      []byte
		hoursStart *string
		hoursEnd   *string
		risk       string
	)
	if err := rows.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Name,
		&rule.Active,
		&marginStr,
		&rule.MinProfit,
		&maxBuy,
		&rule.MinFeasibilityScore,
		&risk,
		&rule.SourceFilter,
		&extra,
		&rule.WebhookURL,
		&rule.MaxOpportunities,
		&rule.IncludeDemandBreakdown,
		&rule.IncludeRiskDetails,
		&rule.IntervalMinutes,
		&hoursStart,
		&hoursEnd,
		&rule.ActiveDays,
		&rule.Timezone,
		&rule.LastScannedAt,
		&rule.LastTriggeredAt,
		&rule.TotalAlertsSent,
		&rule.TotalOpportunitiesSent,
		&rule.LastError,
		&rule.LastErrorAt,
		&rule.CreatedAt,
	); err != nil {
		return AlertRule{}, err
	}

	margin, convErr := decimal.NewFromString(marginStr)
	if convErr != nil {
		return AlertRule{}, fmt.Errorf("parse min margin pct: %w", convErr)
	}
	rule.MinMarginPct = margin
	rule.MaxRiskLevel = RiskLevel(risk)
	rule.MaxBuyPrice = maxBuy
	if hoursStart != nil {
		rule.ActiveHoursStart = *hoursStart
	}
	if hoursEnd != nil {
		rule.ActiveHoursEnd = *hoursEnd
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &rule.ExtraFilters); err != nil {
			return AlertRule{}, fmt.Errorf("parse extra filters: %w", err)
		}
	}
	return rule, nil
}
