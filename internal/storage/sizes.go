package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/sizing"
)

const (
	upsertCanonicalSizeSQL = `INSERT INTO canonical_sizes (
        id, gender, ordinal, us_size, eu_size, uk_size, cm_size, jp_size, kr_size
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (gender, ordinal) DO UPDATE
    SET us_size = EXCLUDED.us_size,
        eu_size = EXCLUDED.eu_size,
        uk_size = EXCLUDED.uk_size,
        cm_size = EXCLUDED.cm_size,
        jp_size = EXCLUDED.jp_size,
        kr_size = EXCLUDED.kr_size;`

	listCanonicalSizesSQL = `SELECT
        id, gender, ordinal, us_size, eu_size, uk_size, cm_size, jp_size, kr_size
    FROM canonical_sizes
    ORDER BY gender, ordinal;`

	listSizeAliasesSQL = `SELECT
        id, from_standard, from_value, gender, brand, category, canonical_size_id
    FROM size_aliases;`

	insertSizeConflictSQL = `INSERT INTO size_conflicts (
        canonical_size_id, standard, stored_value, observed_value, source
    ) VALUES ($1,$2,$3,$4,$5);`
)

// UpsertCanonicalSize seeds or reconciles one canonical size. Canonical
// sizes are never deleted.
func (s *Store) UpsertCanonicalSize(ctx context.Context, size sizing.CanonicalSize) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertCanonicalSizeSQL,
		size.ID, string(size.Gender), size.Ordinal,
		size.US.String(),
		nullDecimalArg(size.EU), nullDecimalArg(size.UK), nullDecimalArg(size.CM),
		nullDecimalArg(size.JP), nullDecimalArg(size.KR),
	)
	if execErr != nil {
		return fmt.Errorf("upsert canonical size: %w", execErr)
	}
	return nil
}

// ListCanonicalSizes loads the stored canonical size table.
func (s *Store) ListCanonicalSizes(ctx context.Context) ([]sizing.CanonicalSize, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCanonicalSizesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list canonical sizes: %w", queryErr)
	}
	defer rows.Close()

	sizes := make([]sizing.CanonicalSize, 0)
	for rows.Next() {
		size, scanErr := scanCanonicalSize(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sizes = append(sizes, size)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sizes, nil
}

// ListSizeAliases loads the brand/category overrides.
func (s *Store) ListSizeAliases(ctx context.Context) ([]sizing.Alias, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSizeAliasesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list size aliases: %w", queryErr)
	}
	defer rows.Close()

	aliases := make([]sizing.Alias, 0)
	for rows.Next() {
		var (
			alias    sizing.Alias
			standard string
			gender   string
		)
		if err := rows.Scan(
			&alias.ID, &standard, &alias.FromValue, &gender,
			&alias.Brand, &alias.Category, &alias.CanonicalID,
		); err != nil {
			return nil, err
		}
		alias.FromStandard = sizing.Standard(standard)
		alias.Gender = sizing.Gender(gender)
		aliases = append(aliases, alias)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return aliases, nil
}

// RecordSizeConflict queues conflicting size evidence for manual
// reconciliation. The stored mapping stays untouched.
func (s *Store) RecordSizeConflict(ctx context.Context, conflict sizing.Conflict) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSizeConflictSQL,
		conflict.CanonicalID, string(conflict.Standard),
		conflict.StoredValue.String(), conflict.ObservedValue.String(),
		conflict.Source,
	)
	if execErr != nil {
		return fmt.Errorf("record size conflict: %w", execErr)
	}
	return nil
}

func nullDecimalArg(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.String()
}

func scanCanonicalSize(rows pgx.Rows) (sizing.CanonicalSize, error) {
	var (
		size   sizing.CanonicalSize
		gender string
		usStr  string
		euStr  *string
		ukStr  *string
		cmStr  *string
		jpStr  *string
		krStr  *string
	)
	if err := rows.Scan(
		&size.ID, &gender, &size.Ordinal,
		&usStr, &euStr, &ukStr, &cmStr, &jpStr, &krStr,
	); err != nil {
		return sizing.CanonicalSize{}, err
	}

	size.Gender = sizing.Gender(gender)
	us, err := decimal.NewFromString(usStr)
	if err != nil {
		return sizing.CanonicalSize{}, fmt.Errorf("parse us size: %w", err)
	}
	size.US = us

	for _, field := range []struct {
		src *string
		dst *decimal.NullDecimal
	}{
		{euStr, &size.EU}, {ukStr, &size.UK}, {cmStr, &size.CM},
		{jpStr, &size.JP}, {krStr, &size.KR},
	} {
		if field.src == nil {
			continue
		}
		parsed, convErr := decimal.NewFromString(*field.src)
		if convErr != nil {
			return sizing.CanonicalSize{}, fmt.Errorf("parse size value: %w", convErr)
		}
		*field.dst = decimal.NewNullDecimal(parsed)
	}
	return size, nil
}
