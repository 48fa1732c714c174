package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/storage"
)

// ErrCurrencyMismatch is the sentinel wrapped by CurrencyMismatchError.
var ErrCurrencyMismatch = errors.New("ledger: currency mismatch")

// Opportunity is one retail/resale pairing where the resale side is priced
// above the retail side. Derived, never stored: listing opportunities is a
// pure function over current live offers, so the sequence is restartable by
// re-invoking it.
//
// Score = (profit in major currency units) x margin percentage (0-100, two
// fixed decimals). The product rewards high-margin/low-profit and
// low-margin/high-profit flips similarly; an opportunity weak on both axes
// never outranks one strong on either.
type Opportunity struct {
	ProductID       uuid.UUID
	CanonicalSizeID uuid.NullUUID

	Retail storage.Offer
	Resale storage.Offer

	Currency  string
	Profit    int64
	MarginPct decimal.Decimal
	Score     decimal.Decimal

	// Enrichment used as alert filter inputs and optional payload detail.
	DemandScore      float64
	DemandBreakdown  map[string]float64
	RiskScore        int
	RiskLevel        storage.RiskLevel
	RiskFactors      map[string]string
	FeasibilityScore int
	EstimatedDays    int
}

// CurrencyMismatchError marks a retail/resale pair that matched on product
// and size but quoted different currencies. The pair is excluded from
// opportunity computation; prices are never silently converted.
type CurrencyMismatchError struct {
	ProductID      uuid.UUID
	RetailOfferID  uuid.UUID
	ResaleOfferID  uuid.UUID
	RetailCurrency string
	ResaleCurrency string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("ledger: currency mismatch for product %s: retail %s vs resale %s",
		e.ProductID, e.RetailCurrency, e.ResaleCurrency)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }
