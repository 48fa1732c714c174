package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/alerting"
	"sneaker-arb-alerts/internal/config"
	"sneaker-arb-alerts/internal/ledger"
	"sneaker-arb-alerts/internal/sizing"
	"sneaker-arb-alerts/internal/storage"
)

// ErrInvalidObservation marks observations rejected by field validation
// before any size resolution or storage happens. Batch ingestion skips
// records carrying it instead of aborting the batch.
var ErrInvalidObservation = errors.New("invalid observation")

// OpportunityLister is the matching engine surface the service consumes.
type OpportunityLister interface {
	ListOpportunities(ctx context.Context, filter ledger.Filter) (ledger.Result, error)
}

// Observation is one raw sighting of a product listing, before size
// resolution. SizeValue empty means a sizeless listing (e.g. accessories).
type Observation struct {
	ProductID      uuid.UUID
	Source         string
	SourceNativeID string
	Kind           storage.OfferKind
	Price          int64
	Currency       string
	InStock        bool
	StockQty       int
	URL            string
	SeenAt         time.Time

	SizeStandard sizing.Standard
	SizeValue    string
	Gender       sizing.Gender
	Brand        string
	Category     string

	// Optional second notation from the same listing, cross-checked
	// against the stored canonical mapping.
	CrossCheckStandard sizing.Standard
	CrossCheckValue    decimal.NullDecimal
}

// Service orchestrates ingestion, opportunity scanning, dispatch, and
// housekeeping.
type Service struct {
	offers     storage.OfferStore
	rules      storage.RuleStore
	deliveries storage.DeliveryStore
	engine     OpportunityLister
	sizes      *sizing.Index
	notifier   alerting.Notifier
	logger     zerolog.Logger

	candidateLimit int
	retention      time.Duration
	ledgerCfg      config.LedgerConfig
	now            func() time.Time
}

// New constructs the service.
func New(cfg *config.Config, offers storage.OfferStore, rules storage.RuleStore, deliveries storage.DeliveryStore, engine OpportunityLister, sizes *sizing.Index, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		offers:         offers,
		rules:          rules,
		deliveries:     deliveries,
		engine:         engine,
		sizes:          sizes,
		notifier:       notifier,
		logger:         logger.With().Str("component", "service").Logger(),
		candidateLimit: cfg.Alerting.CandidateLimit,
		retention:      cfg.Alerting.DeliveryRetention,
		ledgerCfg:      cfg.Ledger,
		now:            time.Now,
	}
}

// IngestObservation resolves the observation's size and upserts the offer.
// An unmapped size rejects the observation; nothing is stored and the error
// says which notation failed. Conflicting size evidence keeps the stored
// mapping (the conflict is queued for review) and ingestion proceeds.
func (s *Service) IngestObservation(ctx context.Context, obs Observation) (storage.Offer, bool, error) {
	if obs.ProductID == uuid.Nil {
		return storage.Offer{}, false, fmt.Errorf("%w: missing product id", ErrInvalidObservation)
	}
	if obs.Source == "" || obs.SourceNativeID == "" {
		return storage.Offer{}, false, fmt.Errorf("%w: missing source identity", ErrInvalidObservation)
	}
	if obs.Price <= 0 {
		return storage.Offer{}, false, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidObservation, obs.Price)
	}
	if obs.Currency == "" {
		return storage.Offer{}, false, fmt.Errorf("%w: missing currency", ErrInvalidObservation)
	}

	var sizeID uuid.NullUUID
	if obs.SizeValue != "" {
		size, err := s.sizes.Resolve(obs.SizeStandard, obs.SizeValue, obs.Gender, obs.Brand, obs.Category)
		if err != nil {
			return storage.Offer{}, false, fmt.Errorf("resolve size %s %s (%s): %w", obs.SizeStandard, obs.SizeValue, obs.Gender, err)
		}
		sizeID = uuid.NullUUID{UUID: size.ID, Valid: true}

		if obs.CrossCheckValue.Valid {
			if err := s.sizes.Validate(ctx, size.ID, obs.CrossCheckStandard, obs.CrossCheckValue.Decimal, obs.Source); err != nil {
				if !errors.Is(err, sizing.ErrConflict) {
					return storage.Offer{}, false, err
				}
				// Stored mapping wins until the conflict is reconciled.
				s.logger.Warn().
					Str("product_id", obs.ProductID.String()).
					Str("source", obs.Source).
					Err(err).
					Msg("ingesting with stored size mapping despite conflict")
			}
		}
	}

	seen := obs.SeenAt
	if seen.IsZero() {
		seen = s.now().UTC()
	}

	offer := storage.Offer{
		ProductID:       obs.ProductID,
		CanonicalSizeID: sizeID,
		Source:          obs.Source,
		SourceNativeID:  obs.SourceNativeID,
		Kind:            obs.Kind,
		Price:           obs.Price,
		Currency:        obs.Currency,
		InStock:         obs.InStock,
		StockQty:        obs.StockQty,
		URL:             obs.URL,
		LastSeenAt:      seen,
	}

	stored, changed, err := s.offers.UpsertOffer(ctx, offer)
	if err != nil {
		return storage.Offer{}, false, fmt.Errorf("upsert offer: %w", err)
	}

	s.logger.Debug().
		Str("offer_id", stored.ID.String()).
		Str("source", stored.Source).
		Bool("changed", changed).
		Msg("observation ingested")
	return stored, changed, nil
}

// ScanRule evaluates one claimed rule: derive opportunities, drop those
// already delivered inside the retention window, dispatch the rest, and
// record the outcome. An empty batch sends nothing and records nothing; a
// failed dispatch records the error on the rule and leaves the candidates
// eligible for the next cycle.
func (s *Service) ScanRule(ctx context.Context, rule storage.AlertRule) error {
	now := s.now().UTC()

	fresh, candidates, err := s.collectFresh(ctx, rule, now)
	if err != nil {
		return s.failScan(ctx, rule, now, err)
	}

	if len(fresh) == 0 {
		s.logger.Debug().
			Str("rule_id", rule.ID.String()).
			Int("candidates", candidates).
			Msg("nothing new to deliver")
		return nil
	}

	note := alerting.BuildNotification(rule, fresh, s.sizeLabel, now)
	if err := s.notifier.Notify(ctx, rule.WebhookURL, note); err != nil {
		return s.failScan(ctx, rule, now, fmt.Errorf("dispatch alert: %w", err))
	}

	records := make([]storage.DeliveryRecord, 0, len(fresh))
	for i := range fresh {
		records = append(records, storage.DeliveryRecord{
			AlertID:     rule.ID,
			Fingerprint: fresh[i].Fingerprint(),
			SentAt:      now,
		})
	}
	if err := s.deliveries.InsertDeliveries(ctx, records); err != nil {
		return fmt.Errorf("record deliveries: %w", err)
	}
	if err := s.rules.RecordDelivery(ctx, rule.ID, len(fresh), now); err != nil {
		return fmt.Errorf("record delivery on rule: %w", err)
	}

	s.logger.Info().
		Str("rule_id", rule.ID.String()).
		Str("rule_name", rule.Name).
		Int("delivered", len(fresh)).
		Msg("alert sent")
	return nil
}

// PreviewRule runs the scan pipeline for a rule without claiming it,
// dispatching anything, or touching bookkeeping. Used by the dry-run CLI.
func (s *Service) PreviewRule(ctx context.Context, rule storage.AlertRule) (alerting.Notification, error) {
	now := s.now().UTC()

	fresh, _, err := s.collectFresh(ctx, rule, now)
	if err != nil {
		return alerting.Notification{}, err
	}
	return alerting.BuildNotification(rule, fresh, s.sizeLabel, now), nil
}

// collectFresh derives the rule's candidate opportunities and strips those
// already delivered within the retention window, capped at the rule's batch
// size. Returns the fresh batch and the pre-dedup candidate count.
func (s *Service) collectFresh(ctx context.Context, rule storage.AlertRule, now time.Time) ([]ledger.Opportunity, int, error) {
	result, err := s.engine.ListOpportunities(ctx, ledger.Filter{
		MinMarginPct:   rule.MinMarginPct,
		MinProfit:      rule.MinProfit,
		MaxBuyPrice:    rule.MaxBuyPrice,
		MinFeasibility: rule.MinFeasibilityScore,
		MaxRisk:        rule.MaxRiskLevel,
		Source:         rule.SourceFilter,
		Limit:          s.candidateLimit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list opportunities: %w", err)
	}

	delivered, err := s.deliveries.ListDeliveredFingerprints(ctx, rule.ID, now.Add(-s.retention))
	if err != nil {
		return nil, 0, fmt.Errorf("load delivered fingerprints: %w", err)
	}

	fresh := make([]ledger.Opportunity, 0, len(result.Opportunities))
	for i := range result.Opportunities {
		opp := result.Opportunities[i]
		if _, seen := delivered[opp.Fingerprint()]; seen {
			continue
		}
		fresh = append(fresh, opp)
		if rule.MaxOpportunities > 0 && len(fresh) == rule.MaxOpportunities {
			break
		}
	}
	return fresh, len(result.Opportunities), nil
}

func (s *Service) failScan(ctx context.Context, rule storage.AlertRule, now time.Time, scanErr error) error {
	if recErr := s.rules.RecordFailure(ctx, rule.ID, scanErr.Error(), now); recErr != nil {
		s.logger.Error().
			Str("rule_id", rule.ID.String()).
			Err(recErr).
			Msg("failed to record scan failure")
	}
	return scanErr
}

func (s *Service) sizeLabel(id uuid.NullUUID) string {
	if !id.Valid || s.sizes == nil {
		return ""
	}
	size, ok := s.sizes.ByID(id.UUID)
	if !ok {
		return ""
	}
	return size.Label()
}

// Sweep soft-expires offers unconfirmed beyond their source's staleness
// window, then applies the default window to everything else. Override keys
// are lower-cased here so the exclusion list matches the store's
// case-insensitive source comparison even for hand-built configs. Returns
// the total rows swept.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	now := s.now().UTC()

	windows := make(map[string]time.Duration, len(s.ledgerCfg.SourceStaleness))
	for source, window := range s.ledgerCfg.SourceStaleness {
		windows[strings.ToLower(source)] = window
	}
	overridden := make([]string, 0, len(windows))
	for source := range windows {
		overridden = append(overridden, source)
	}
	sort.Strings(overridden)

	var total int64
	for _, source := range overridden {
		cutoff := now.Add(-windows[source])
		swept, err := s.offers.SweepStaleOffers(ctx, source, cutoff)
		if err != nil {
			return total, fmt.Errorf("sweep source %s: %w", source, err)
		}
		total += swept
	}

	swept, err := s.offers.SweepStaleOffersExcept(ctx, overridden, now.Add(-s.ledgerCfg.DefaultStaleness))
	if err != nil {
		return total, fmt.Errorf("sweep default window: %w", err)
	}
	total += swept

	if total > 0 {
		s.logger.Info().Int64("swept", total).Msg("stale offers marked out of stock")
	}
	return total, nil
}

// PruneDeliveries removes delivery records older than the retention window.
func (s *Service) PruneDeliveries(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	pruned, err := s.deliveries.PruneDeliveriesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	if pruned > 0 {
		s.logger.Info().Int64("pruned", pruned).Msg("expired delivery records removed")
	}
	return pruned, nil
}
