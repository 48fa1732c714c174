package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sneaker-arb-alerts/internal/storage"
)

// Scanner evaluates one claimed rule end to end: match, dedup, dispatch,
// record.
type Scanner interface {
	ScanRule(ctx context.Context, rule storage.AlertRule) error
}

// RuleSource lists candidate rules and provides the claim primitive that
// keeps concurrent schedulers from double-scanning a rule.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]storage.AlertRule, error)
	ClaimRule(ctx context.Context, id uuid.UUID, previous *time.Time, now time.Time) (bool, error)
}

// Options tune the scheduler loop.
type Options struct {
	PollInterval time.Duration
	Workers      int
	StartupDelay time.Duration
}

// Scheduler polls for due rules, claims each with a compare-and-set on
// last_scanned_at, and fans claimed rules out to a worker pool. A failed
// claim means another instance won the rule this cycle.
type Scheduler struct {
	rules   RuleSource
	scanner Scanner
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs a scheduler.
func New(rules RuleSource, scanner Scanner, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	return &Scheduler{
		rules:   rules,
		scanner: scanner,
		opts:    opts,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

// Run drives the poll loop until the context is cancelled. Worker failures
// are logged per rule and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.StartupDelay):
		}
	}

	jobs := make(chan storage.AlertRule)
	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, jobs)
		}()
	}

	s.logger.Info().
		Dur("poll_interval", s.opts.PollInterval).
		Int("workers", s.opts.Workers).
		Msg("scheduler started")

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.dispatch(ctx, jobs)
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.dispatch(ctx, jobs)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, jobs chan<- storage.AlertRule) {
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list active rules")
		return
	}

	now := s.now().UTC()
	for _, rule := range rules {
		due, err := RuleDue(rule, now)
		if err != nil {
			s.logger.Warn().
				Str("rule_id", rule.ID.String()).
				Err(err).
				Msg("skipping rule with invalid schedule")
			continue
		}
		if !due {
			continue
		}

		claimed, err := s.rules.ClaimRule(ctx, rule.ID, rule.LastScannedAt, now)
		if err != nil {
			s.logger.Error().
				Str("rule_id", rule.ID.String()).
				Err(err).
				Msg("claim rule")
			continue
		}
		if !claimed {
			// Another scheduler instance took it this cycle.
			continue
		}

		claimedAt := now
		rule.LastScannedAt = &claimedAt
		select {
		case <-ctx.Done():
			return
		case jobs <- rule:
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, jobs <-chan storage.AlertRule) {
	for rule := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := s.scanner.ScanRule(ctx, rule); err != nil {
			s.logger.Error().
				Str("rule_id", rule.ID.String()).
				Str("rule_name", rule.Name).
				Err(err).
				Msg("rule scan failed")
		}
	}
}
