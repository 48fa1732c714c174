package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	selectOfferForUpdateSQL = `SELECT id, price, in_stock
    FROM offers
    WHERE product_id = $1
      AND source = $2
      AND source_native_id = $3
      AND canonical_size_id IS NOT DISTINCT FROM $4
    FOR UPDATE;`

	insertOfferSQL = `INSERT INTO offers (
        id,
        product_id,
        canonical_size_id,
        source,
        source_native_id,
        offer_kind,
        price,
        currency,
        in_stock,
        stock_qty,
        url,
        last_seen_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (product_id, source, source_native_id, canonical_size_id)
        DO NOTHING
    RETURNING id;`

	updateOfferSQL = `UPDATE offers
    SET offer_kind = $2,
        price      = $3,
        currency   = $4,
        in_stock   = $5,
        stock_qty  = $6,
        url        = $7,
        last_seen_at = $8
    WHERE id = $1;`

	appendOfferHistorySQL = `INSERT INTO offer_history (
        offer_id, price, in_stock, recorded_at
    ) VALUES ($1,$2,$3,$4);`

	listLiveOffersSQL = `SELECT
        id, product_id, canonical_size_id, source, source_native_id,
        offer_kind, price, currency, in_stock, stock_qty, url,
        last_seen_at, created_at
    FROM offers
    WHERE in_stock
      AND offer_kind = ANY($1)
    ORDER BY product_id, canonical_size_id, source;`

	getOfferSQL = `SELECT
        id, product_id, canonical_size_id, source, source_native_id,
        offer_kind, price, currency, in_stock, stock_qty, url,
        last_seen_at, created_at
    FROM offers
    WHERE id = $1;`

	listOfferHistorySQL = `SELECT id, offer_id, price, in_stock, recorded_at
    FROM offer_history
    WHERE offer_id = $1
    ORDER BY recorded_at;`

	sweepStaleOffersSQL = `WITH swept AS (
        UPDATE offers
        SET in_stock = FALSE
        WHERE LOWER(source) = LOWER($1)
          AND in_stock
          AND last_seen_at < $2
        RETURNING id, price
    ), recorded AS (
        INSERT INTO offer_history (offer_id, price, in_stock, recorded_at)
        SELECT id, price, FALSE, $3 FROM swept
    )
    SELECT COUNT(*) FROM swept;`

	sweepStaleOffersExceptSQL = `WITH swept AS (
        UPDATE offers
        SET in_stock = FALSE
        WHERE LOWER(source) <> ALL($1)
          AND in_stock
          AND last_seen_at < $2
        RETURNING id, price
    ), recorded AS (
        INSERT INTO offer_history (offer_id, price, in_stock, recorded_at)
        SELECT id, price, FALSE, $3 FROM swept
    )
    SELECT COUNT(*) FROM swept;`
)

// offerChanged reports whether a re-observed offer differs from the stored
// row in either of the fields OfferHistory tracks. It gates the history
// append in UpsertOffer: an unchanged re-ingest leaves history alone, a
// price or availability move appends exactly one row.
func offerChanged(prevPrice int64, prevInStock bool, next Offer) bool {
	return prevPrice != next.Price || prevInStock != next.InStock
}

// UpsertOffer is the idempotent ingestion write. The offer row write and
// the history append happen in one transaction, so history can never skip a
// state the offer itself held. The insert goes first with ON CONFLICT DO
// NOTHING so two concurrent first sightings of the same natural key
// converge: the loser sees no returned row and falls through to the update
// path instead of dying on the unique index. Returns the stored offer and
// whether price or availability changed.
func (s *Store) UpsertOffer(ctx context.Context, offer Offer) (Offer, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Offer{}, false, err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Offer{}, false, fmt.Errorf("begin upsert offer: %w", err)
	}
	defer tx.Rollback(ctx)

	var sizeID interface{}
	if offer.CanonicalSizeID.Valid {
		sizeID = offer.CanonicalSizeID.UUID
	}

	now := offer.LastSeenAt
	if now.IsZero() {
		now = time.Now().UTC()
		offer.LastSeenAt = now
	}
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}

	var insertedID uuid.UUID
	insertErr := tx.QueryRow(ctx, insertOfferSQL,
		offer.ID, offer.ProductID, sizeID, offer.Source, offer.SourceNativeID,
		offer.Kind, offer.Price, offer.Currency, offer.InStock, offer.StockQty,
		offer.URL, now,
	).Scan(&insertedID)

	changed := false
	switch {
	case insertErr == nil:
		changed = true
	case errors.Is(insertErr, pgx.ErrNoRows):
		var (
			existingID      uuid.UUID
			existingPrice   int64
			existingInStock bool
		)
		if scanErr := tx.QueryRow(ctx, selectOfferForUpdateSQL,
			offer.ProductID, offer.Source, offer.SourceNativeID, sizeID,
		).Scan(&existingID, &existingPrice, &existingInStock); scanErr != nil {
			return Offer{}, false, fmt.Errorf("select offer for update: %w", scanErr)
		}
		offer.ID = existingID
		changed = offerChanged(existingPrice, existingInStock, offer)
		if _, err := tx.Exec(ctx, updateOfferSQL,
			offer.ID, offer.Kind, offer.Price, offer.Currency,
			offer.InStock, offer.StockQty, offer.URL, now,
		); err != nil {
			return Offer{}, false, fmt.Errorf("update offer: %w", err)
		}
	default:
		return Offer{}, false, fmt.Errorf("insert offer: %w", insertErr)
	}

	if changed {
		if _, err := tx.Exec(ctx, appendOfferHistorySQL, offer.ID, offer.Price, offer.InStock, now); err != nil {
			return Offer{}, false, fmt.Errorf("append offer history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Offer{}, false, fmt.Errorf("commit upsert offer: %w", err)
	}
	return offer, changed, nil
}

// ListLiveOffers lists in-stock offers of the given kinds.
func (s *Store) ListLiveOffers(ctx context.Context, kinds []OfferKind) ([]Offer, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	rows, queryErr := pool.Query(ctx, listLiveOffersSQL, kindStrs)
	if queryErr != nil {
		return nil, fmt.Errorf("list live offers: %w", queryErr)
	}
	defer rows.Close()

	offers := make([]Offer, 0)
	for rows.Next() {
		offer, scanErr := scanOffer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		offers = append(offers, offer)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return offers, nil
}

// GetOffer fetches one offer by id.
func (s *Store) GetOffer(ctx context.Context, id uuid.UUID) (Offer, error) {
	pool, err := s.getPool()
	if err != nil {
		return Offer{}, err
	}

	rows, queryErr := pool.Query(ctx, getOfferSQL, id)
	if queryErr != nil {
		return Offer{}, fmt.Errorf("get offer: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Offer{}, rows.Err()
		}
		return Offer{}, pgx.ErrNoRows
	}
	return scanOffer(rows)
}

// ListOfferHistory lists the append-only history for one offer, oldest
// first.
func (s *Store) ListOfferHistory(ctx context.Context, offerID uuid.UUID) ([]OfferHistory, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOfferHistorySQL, offerID)
	if queryErr != nil {
		return nil, fmt.Errorf("list offer history: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]OfferHistory, 0)
	for rows.Next() {
		var entry OfferHistory
		if err := rows.Scan(&entry.ID, &entry.OfferID, &entry.Price, &entry.InStock, &entry.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// SweepStaleOffers soft-expires offers from one source unconfirmed since
// the cutoff, appending the matching history rows in the same statement.
// Source matching is case-insensitive. Returns the number of offers swept.
func (s *Store) SweepStaleOffers(ctx context.Context, source string, cutoff time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var swept int64
	if scanErr := pool.QueryRow(ctx, sweepStaleOffersSQL, source, cutoff, time.Now().UTC()).Scan(&swept); scanErr != nil {
		return 0, fmt.Errorf("sweep stale offers: %w", scanErr)
	}
	return swept, nil
}

// SweepStaleOffersExcept applies the default staleness window to every
// source without a per-source override. Stored sources are compared
// case-insensitively, so excluded entries must be lower-cased.
func (s *Store) SweepStaleOffersExcept(ctx context.Context, excluded []string, cutoff time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	if excluded == nil {
		excluded = []string{}
	}

	var swept int64
	if scanErr := pool.QueryRow(ctx, sweepStaleOffersExceptSQL, excluded, cutoff, time.Now().UTC()).Scan(&swept); scanErr != nil {
		return 0, fmt.Errorf("sweep stale offers: %w", scanErr)
	}
	return swept, nil
}

func scanOffer(rows pgx.Rows) (Offer, error) {
	var (
		offer  Offer
		sizeID *uuid.UUID
	)
	if err := rows.Scan(
		&offer.ID,
		&offer.ProductID,
		&sizeID,
		&offer.Source,
		&offer.SourceNativeID,
		&offer.Kind,
		&offer.Price,
		&offer.Currency,
		&offer.InStock,
		&offer.StockQty,
		&offer.URL,
		&offer.LastSeenAt,
		&offer.CreatedAt,
	); err != nil {
		return Offer{}, err
	}
	if sizeID != nil {
		offer.CanonicalSizeID = uuid.NullUUID{UUID: *sizeID, Valid: true}
	}
	return offer, nil
}
