package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Default linear conversions against the US baseline. EU offsets differ per
// gender; UK tracks EU with a constant shift; CM (and its JP/KR derivatives)
// uses a coarse multiplicative approximation of EU.
var (
	euOffsetMen   = decimal.NewFromInt(33)
	euOffsetWomen = decimal.RequireFromString("30.5")
	euOffsetYouth = decimal.RequireFromString("32.5")
	ukFromEU      = decimal.RequireFromString("33.5")
	cmPerEU       = decimal.RequireFromString("0.635")
	krPerCM       = decimal.NewFromInt(10)
)

func euOffset(gender Gender) (decimal.Decimal, error) {
	switch gender {
	case GenderMen:
		return euOffsetMen, nil
	case GenderWomen:
		return euOffsetWomen, nil
	case GenderYouth:
		return euOffsetYouth, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("sizing: unknown gender %q", gender)
	}
}

// roundHalf snaps a value to the nearest half step.
func roundHalf(v decimal.Decimal) decimal.Decimal {
	return v.Mul(decimal.NewFromInt(2)).Round(0).Div(decimal.NewFromInt(2))
}

// usEquivalent converts a raw value in the given standard to the US
// baseline, rounded to the nearest half step.
func usEquivalent(std Standard, value decimal.Decimal, gender Gender) (decimal.Decimal, error) {
	offset, err := euOffset(gender)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var eu decimal.Decimal
	switch std {
	case StandardUS:
		return roundHalf(value), nil
	case StandardEU:
		eu = value
	case StandardUK:
		eu = value.Add(ukFromEU)
	case StandardCM:
		eu = value.Div(cmPerEU)
	case StandardJP:
		eu = value.Div(cmPerEU)
	case StandardKR:
		eu = value.Div(krPerCM).Div(cmPerEU)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnknownStandard, std)
	}

	return roundHalf(eu.Sub(offset)), nil
}

// fromUS expands a US half-step size into every derived standard.
func fromUS(us decimal.Decimal, gender Gender) (eu, uk, cm, jp, kr decimal.Decimal, err error) {
	offset, err := euOffset(gender)
	if err != nil {
		return
	}
	eu = us.Add(offset)
	uk = eu.Sub(ukFromEU)
	cm = roundHalf(eu.Mul(cmPerEU))
	jp = cm
	kr = cm.Mul(krPerCM)
	return
}
