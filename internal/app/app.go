package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sneaker-arb-alerts/internal/alerting"
	"sneaker-arb-alerts/internal/config"
	"sneaker-arb-alerts/internal/ledger"
	"sneaker-arb-alerts/internal/maintenance"
	"sneaker-arb-alerts/internal/scheduler"
	"sneaker-arb-alerts/internal/service"
	"sneaker-arb-alerts/internal/sizing"
	"sneaker-arb-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// loadSizeIndex hydrates the in-memory size index from the persisted
// canonical table and aliases, falling back to the generated defaults when
// the table has not been seeded yet.
func (a *App) loadSizeIndex(ctx context.Context, store *storage.Store) (*sizing.Index, error) {
	index := sizing.NewIndex(store, a.Logger)

	sizes, err := store.ListCanonicalSizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load canonical sizes: %w", err)
	}
	if len(sizes) == 0 {
		a.Logger.Warn().Msg("canonical size table empty; using generated defaults (run seed-sizes to persist)")
		sizing.SeedIndex(index)
		return index, nil
	}
	for _, size := range sizes {
		index.Add(size)
	}

	aliases, err := store.ListSizeAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load size aliases: %w", err)
	}
	for _, alias := range aliases {
		index.AddAlias(alias)
	}

	a.Logger.Info().
		Int("sizes", len(sizes)).
		Int("aliases", len(aliases)).
		Msg("size index loaded")
	return index, nil
}

func (a *App) newNotifier() alerting.Notifier {
	return alerting.NewWebhookNotifier(alerting.WebhookOptions{
		Timeout:   a.Config.Alerting.RequestTimeout,
		Attempts:  a.Config.Alerting.RetryAttempts,
		Backoff:   a.Config.Alerting.RetryBackoff,
		UserAgent: a.Config.Alerting.UserAgent,
	}, a.Logger)
}

func (a *App) newService(store *storage.Store, index *sizing.Index) *service.Service {
	engine := ledger.NewEngine(store, nil, a.Logger)
	return service.New(a.Config, store, store, store, engine, index, a.newNotifier(), a.Logger)
}

// Run executes the long-running scan service: the alert scheduler plus the
// background maintenance jobs. Blocks until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	index, err := a.loadSizeIndex(ctx, store)
	if err != nil {
		return err
	}

	svc := a.newService(store, index)

	maint := maintenance.New(svc, store, a.Config.Maintenance, a.Config.Scheduler.AdvisoryLockKey, a.Logger, ctx)
	if err := maint.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer maint.Stop()

	sched := scheduler.New(store, svc, scheduler.Options{
		PollInterval: a.Config.Scheduler.PollInterval,
		Workers:      a.Config.Scheduler.Workers,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting alert scan service")
	err = sched.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert scan service stopped")
	return nil
}

// ExportOptions hold parameters for exporting one offer's price history.
type ExportOptions struct {
	OfferID   uuid.UUID
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the dry-run scan. A non-empty WebhookURL
// dispatches the payload there instead of the rule's configured target.
type SimulateOptions struct {
	RuleID     uuid.UUID
	WebhookURL string
}

// IngestOptions configure the file-based ingestion command.
type IngestOptions struct {
	Path string
}
