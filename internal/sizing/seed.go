package sizing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seedRange struct {
	gender Gender
	minUS  decimal.Decimal
	maxUS  decimal.Decimal
}

// Supported half-step runs per gender.
var seedRanges = []seedRange{
	{GenderMen, decimal.RequireFromString("3.5"), decimal.NewFromInt(18)},
	{GenderWomen, decimal.NewFromInt(5), decimal.NewFromInt(15)},
	{GenderYouth, decimal.NewFromInt(1), decimal.NewFromInt(7)},
}

// DefaultSizes generates the canonical size table for every supported
// gender and half step, with all derived standards filled in. IDs are
// freshly generated; persisted seeds keep the IDs they were created with.
func DefaultSizes() []CanonicalSize {
	half := decimal.RequireFromString("0.5")

	var out []CanonicalSize
	for _, r := range seedRanges {
		for us := r.minUS; us.LessThanOrEqual(r.maxUS); us = us.Add(half) {
			size, err := buildSize(us, r.gender)
			if err != nil {
				continue
			}
			out = append(out, size)
		}
	}
	return out
}

func buildSize(us decimal.Decimal, gender Gender) (CanonicalSize, error) {
	eu, uk, cm, jp, kr, err := fromUS(us, gender)
	if err != nil {
		return CanonicalSize{}, err
	}
	return CanonicalSize{
		ID:      uuid.New(),
		Gender:  gender,
		Ordinal: ordinalFor(us),
		US:      us,
		EU:      decimal.NewNullDecimal(eu),
		UK:      decimal.NewNullDecimal(uk),
		CM:      decimal.NewNullDecimal(cm),
		JP:      decimal.NewNullDecimal(jp),
		KR:      decimal.NewNullDecimal(kr),
	}, nil
}

// SeedIndex loads the default size table into a fresh index.
func SeedIndex(index *Index) {
	for _, size := range DefaultSizes() {
		index.Add(size)
	}
}
