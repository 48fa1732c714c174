package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sneaker-arb-alerts/internal/config"
	"sneaker-arb-alerts/internal/service"
	"sneaker-arb-alerts/internal/storage"
)

// Runner schedules background housekeeping: the staleness sweep over the
// offer ledger and the delivery-record prune. Specs use six-field cron
// expressions (seconds first). Jobs coordinate across processes with a
// postgres advisory lock so only one instance runs each pass.
type Runner struct {
	cron    *cron.Cron
	svc     *service.Service
	locker  storage.AdvisoryLocker
	cfg     config.MaintenanceConfig
	lockKey int64
	logger  zerolog.Logger
	baseCtx context.Context
}

// New builds a maintenance runner bound to a base context.
func New(svc *service.Service, locker storage.AdvisoryLocker, cfg config.MaintenanceConfig, lockKey int64, logger zerolog.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		svc:     svc,
		locker:  locker,
		cfg:     cfg,
		lockKey: lockKey,
		logger:  logger.With().Str("component", "maintenance").Logger(),
		baseCtx: baseCtx,
	}
}

// Start registers the jobs and launches the cron loop.
func (r *Runner) Start() error {
	if _, err := r.add(r.cfg.SweepSpec, "stale_offer_sweep", r.sweep); err != nil {
		return err
	}
	if _, err := r.add(r.cfg.PruneSpec, "delivery_prune", r.prune); err != nil {
		return err
	}

	r.logger.Info().
		Str("sweep_spec", r.cfg.SweepSpec).
		Str("prune_spec", r.cfg.PruneSpec).
		Msg("maintenance cron started")
	r.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("maintenance cron stopped")
}

func (r *Runner) add(spec, name string, job func(context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		ctx := r.baseCtx
		if ctx.Err() != nil {
			return
		}

		unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.lockKey)
		if err != nil {
			r.logger.Error().Str("job", name).Err(err).Msg("advisory lock")
			return
		}
		if !acquired {
			r.logger.Debug().Str("job", name).Msg("another instance holds the lock")
			return
		}
		defer unlock()

		started := time.Now()
		if err := job(ctx); err != nil {
			r.logger.Error().Str("job", name).Err(err).Msg("maintenance job failed")
			return
		}
		r.logger.Info().
			Str("job", name).
			Dur("elapsed", time.Since(started)).
			Msg("maintenance job finished")
	})
}

func (r *Runner) sweep(ctx context.Context) error {
	_, err := r.svc.Sweep(ctx)
	return err
}

func (r *Runner) prune(ctx context.Context) error {
	_, err := r.svc.PruneDeliveries(ctx)
	return err
}
