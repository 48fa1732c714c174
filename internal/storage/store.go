package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"sneaker-arb-alerts/internal/config"
	"sneaker-arb-alerts/internal/sizing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// OfferStore defines offer ledger persistence.
type OfferStore interface {
	UpsertOffer(ctx context.Context, offer Offer) (Offer, bool, error)
	ListLiveOffers(ctx context.Context, kinds []OfferKind) ([]Offer, error)
	ListOfferHistory(ctx context.Context, offerID uuid.UUID) ([]OfferHistory, error)
	SweepStaleOffers(ctx context.Context, source string, cutoff time.Time) (int64, error)
	SweepStaleOffersExcept(ctx context.Context, excluded []string, cutoff time.Time) (int64, error)
}

// RuleStore defines alert rule persistence and the claim primitive.
type RuleStore interface {
	InsertRule(ctx context.Context, rule AlertRule) (AlertRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (AlertRule, error)
	ListActiveRules(ctx context.Context) ([]AlertRule, error)
	ClaimRule(ctx context.Context, id uuid.UUID, previous *time.Time, now time.Time) (bool, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, opportunities int, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error
}

// DeliveryStore defines duplicate-suppression bookkeeping.
type DeliveryStore interface {
	InsertDeliveries(ctx context.Context, records []DeliveryRecord) error
	ListDeliveredFingerprints(ctx context.Context, alertID uuid.UUID, since time.Time) (map[string]struct{}, error)
	PruneDeliveriesBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// SizeStore defines canonical size persistence.
type SizeStore interface {
	UpsertCanonicalSize(ctx context.Context, size sizing.CanonicalSize) error
	ListCanonicalSizes(ctx context.Context) ([]sizing.CanonicalSize, error)
	ListSizeAliases(ctx context.Context) ([]sizing.Alias, error)
	RecordSizeConflict(ctx context.Context, conflict sizing.Conflict) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to offers, rules, deliveries, and sizes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns
// a release func. Used to keep maintenance jobs single-flight across
// processes.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}
