package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	insertDeliverySQL = `INSERT INTO delivery_records (alert_id, fingerprint, sent_at)
    VALUES ($1,$2,$3)
    ON CONFLICT (alert_id, fingerprint) DO NOTHING;`

	listDeliveredFingerprintsSQL = `SELECT fingerprint
    FROM delivery_records
    WHERE alert_id = $1
      AND sent_at >= $2;`

	pruneDeliveriesSQL = `DELETE FROM delivery_records WHERE sent_at < $1;`
)

// InsertDeliveries records delivered opportunities for duplicate
// suppression. The (alert_id, fingerprint) key makes re-inserts no-ops, so
// concurrent rules never conflict.
func (s *Store) InsertDeliveries(ctx context.Context, records []DeliveryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if _, execErr := pool.Exec(ctx, insertDeliverySQL, rec.AlertID, rec.Fingerprint, rec.SentAt); execErr != nil {
			return fmt.Errorf("insert delivery record: %w", execErr)
		}
	}
	return nil
}

// ListDeliveredFingerprints returns the fingerprints delivered for one rule
// within the retention window.
func (s *Store) ListDeliveredFingerprints(ctx context.Context, alertID uuid.UUID, since time.Time) (map[string]struct{}, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDeliveredFingerprintsSQL, alertID, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list delivered fingerprints: %w", queryErr)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		seen[fp] = struct{}{}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return seen, nil
}

// PruneDeliveriesBefore deletes delivery records past the retention window.
func (s *Store) PruneDeliveriesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	tag, execErr := pool.Exec(ctx, pruneDeliveriesSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("prune delivery records: %w", execErr)
	}
	return tag.RowsAffected(), nil
}
