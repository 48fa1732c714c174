package sizing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ConflictRecorder persists conflicting size evidence for manual review.
type ConflictRecorder interface {
	RecordSizeConflict(ctx context.Context, conflict Conflict) error
}

type aliasKey struct {
	standard Standard
	value    string
	gender   Gender
	brand    string
	category string
}

// Index resolves regional size notations to canonical sizes. Reads are
// lock-free apart from an RWMutex; mutation happens only through seeding
// and alias registration.
type Index struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*CanonicalSize
	byOrdinal map[Gender]map[int]*CanonicalSize
	aliases   map[aliasKey]uuid.UUID
	conflicts ConflictRecorder
	logger    zerolog.Logger
}

// NewIndex builds an empty index. The conflict recorder may be nil, in
// which case conflicts are only logged.
func NewIndex(conflicts ConflictRecorder, logger zerolog.Logger) *Index {
	return &Index{
		byID:      make(map[uuid.UUID]*CanonicalSize),
		byOrdinal: make(map[Gender]map[int]*CanonicalSize),
		aliases:   make(map[aliasKey]uuid.UUID),
		conflicts: conflicts,
		logger:    logger.With().Str("component", "size_index").Logger(),
	}
}

// Add registers a canonical size. Later entries with the same gender and
// ordinal replace earlier ones (used by the validated reconciliation job).
func (x *Index) Add(size CanonicalSize) {
	x.mu.Lock()
	defer x.mu.Unlock()

	copied := size
	x.byID[size.ID] = &copied
	byOrd, ok := x.byOrdinal[size.Gender]
	if !ok {
		byOrd = make(map[int]*CanonicalSize)
		x.byOrdinal[size.Gender] = byOrd
	}
	byOrd[size.Ordinal] = &copied
}

// AddAlias registers a brand/category-scoped override.
func (x *Index) AddAlias(alias Alias) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.aliases[aliasKeyFor(alias)] = alias.CanonicalID
}

func aliasKeyFor(a Alias) aliasKey {
	return aliasKey{
		standard: a.FromStandard,
		value:    normalizeRaw(a.FromValue),
		gender:   a.Gender,
		brand:    strings.ToLower(a.Brand),
		category: strings.ToLower(a.Category),
	}
}

func normalizeRaw(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// ByID returns the canonical size with the given id.
func (x *Index) ByID(id uuid.UUID) (CanonicalSize, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	size, ok := x.byID[id]
	if !ok {
		return CanonicalSize{}, false
	}
	return *size, true
}

// All returns every canonical size, in no particular order.
func (x *Index) All() []CanonicalSize {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]CanonicalSize, 0, len(x.byID))
	for _, size := range x.byID {
		out = append(out, *size)
	}
	return out
}

// Resolve maps a raw size notation to a canonical size. Resolution order:
// brand+category alias, category alias, then the default per-gender
// conversion rounded to the nearest supported half step. Returns
// ErrNotFound when no mapping exists; callers must not guess.
func (x *Index) Resolve(std Standard, raw string, gender Gender, brand, category string) (CanonicalSize, error) {
	normalized := normalizeRaw(raw)
	if normalized == "" {
		return CanonicalSize{}, fmt.Errorf("%w: empty value", ErrNotFound)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	lookups := []aliasKey{
		{standard: std, value: normalized, gender: gender, brand: strings.ToLower(brand), category: strings.ToLower(category)},
		{standard: std, value: normalized, gender: gender, category: strings.ToLower(category)},
	}
	for _, key := range lookups {
		if key.brand == "" && key.category == "" {
			continue
		}
		if id, ok := x.aliases[key]; ok {
			if size, found := x.byID[id]; found {
				return *size, nil
			}
		}
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return CanonicalSize{}, fmt.Errorf("%w: unparsable %s value %q", ErrNotFound, std, raw)
	}

	us, err := usEquivalent(std, value, gender)
	if err != nil {
		return CanonicalSize{}, err
	}

	byOrd, ok := x.byOrdinal[gender]
	if !ok {
		return CanonicalSize{}, fmt.Errorf("%w: no sizes seeded for gender %q", ErrNotFound, gender)
	}
	size, ok := byOrd[ordinalFor(us)]
	if !ok {
		return CanonicalSize{}, fmt.Errorf("%w: %s %s (%s) outside supported range", ErrNotFound, std, raw, gender)
	}
	return *size, nil
}

// Validate compares a newly observed mapping against the stored canonical
// size. Evidence within half a canonical step is accepted silently; beyond
// that the observation is queued as a conflict and ErrConflict is returned.
// The stored mapping is never overwritten here.
func (x *Index) Validate(ctx context.Context, canonicalID uuid.UUID, std Standard, observed decimal.Decimal, source string) error {
	x.mu.RLock()
	size, ok := x.byID[canonicalID]
	x.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: canonical size %s", ErrNotFound, canonicalID)
	}

	stored, ok := size.Value(std)
	if !ok {
		// No stored value for this standard: nothing to contradict.
		return nil
	}

	observedUS, err := usEquivalent(std, observed, size.Gender)
	if err != nil {
		return err
	}
	storedUS, err := usEquivalent(std, stored, size.Gender)
	if err != nil {
		return err
	}

	if observedUS.Sub(storedUS).Abs().LessThanOrEqual(decimal.RequireFromString("0.5")) {
		return nil
	}

	conflict := Conflict{
		CanonicalID:   canonicalID,
		Standard:      std,
		StoredValue:   stored,
		ObservedValue: observed,
		Source:        source,
	}
	x.logger.Warn().
		Str("canonical_id", canonicalID.String()).
		Str("standard", string(std)).
		Str("stored", stored.String()).
		Str("observed", observed.String()).
		Str("source", source).
		Msg("size mapping conflict queued for reconciliation")

	if x.conflicts != nil {
		if recErr := x.conflicts.RecordSizeConflict(ctx, conflict); recErr != nil {
			return fmt.Errorf("record size conflict: %w", recErr)
		}
	}
	return fmt.Errorf("%w: %s %s vs stored %s", ErrConflict, std, observed.String(), stored.String())
}

func ordinalFor(us decimal.Decimal) int {
	return int(us.Mul(decimal.NewFromInt(2)).IntPart())
}
