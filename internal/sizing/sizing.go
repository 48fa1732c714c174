package sizing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no canonical mapping exists; callers must not guess.
	ErrNotFound = errors.New("sizing: no canonical mapping")
	// ErrConflict indicates two authoritative sources disagree beyond half a step.
	ErrConflict = errors.New("sizing: conflicting size evidence")
	// ErrUnknownStandard indicates an unrecognised size standard.
	ErrUnknownStandard = errors.New("sizing: unknown size standard")
)

// Gender scopes a size run. Ordinals are only comparable within one gender.
type Gender string

const (
	GenderMen   Gender = "men"
	GenderWomen Gender = "women"
	GenderYouth Gender = "youth"
)

// Standard identifies a regional size notation.
type Standard string

const (
	StandardUS Standard = "US"
	StandardEU Standard = "EU"
	StandardUK Standard = "UK"
	StandardCM Standard = "CM"
	StandardJP Standard = "JP"
	StandardKR Standard = "KR"
)

// CanonicalSize is one physical shoe size expressed in every supported
// standard. Ordinal is the US size in half steps and is monotonic with US
// sizing for a given gender.
type CanonicalSize struct {
	ID      uuid.UUID
	Gender  Gender
	Ordinal int
	US      decimal.Decimal
	EU      decimal.NullDecimal
	UK      decimal.NullDecimal
	CM      decimal.NullDecimal
	JP      decimal.NullDecimal
	KR      decimal.NullDecimal
}

// Value returns the size expressed in the given standard, if known.
func (c *CanonicalSize) Value(std Standard) (decimal.Decimal, bool) {
	switch std {
	case StandardUS:
		return c.US, true
	case StandardEU:
		return c.EU.Decimal, c.EU.Valid
	case StandardUK:
		return c.UK.Decimal, c.UK.Valid
	case StandardCM:
		return c.CM.Decimal, c.CM.Valid
	case StandardJP:
		return c.JP.Decimal, c.JP.Valid
	case StandardKR:
		return c.KR.Decimal, c.KR.Valid
	default:
		return decimal.Decimal{}, false
	}
}

// Label renders a human-readable form, e.g. "US 9 (men)".
func (c *CanonicalSize) Label() string {
	return "US " + c.US.String() + " (" + string(c.Gender) + ")"
}

// Alias maps one source notation directly to a canonical size, consulted
// before the default conversion formula. Brand and category narrow the
// scope; empty means any.
type Alias struct {
	ID           uuid.UUID
	FromStandard Standard
	FromValue    string
	Gender       Gender
	Brand        string
	Category     string
	CanonicalID  uuid.UUID
}

// Conflict captures size evidence that disagrees with the stored canonical
// mapping. Conflicts queue for manual reconciliation; the index never
// overwrites a canonical size on its own.
type Conflict struct {
	CanonicalID   uuid.UUID
	Standard      Standard
	StoredValue   decimal.Decimal
	ObservedValue decimal.Decimal
	Source        string
}
