package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sneaker-arb-alerts/internal/storage"
)

type staticOffers struct {
	offers []storage.Offer
}

func (s *staticOffers) ListLiveOffers(ctx context.Context, kinds []storage.OfferKind) ([]storage.Offer, error) {
	return s.offers, nil
}

func testEngine(offers ...storage.Offer) *Engine {
	return NewEngine(&staticOffers{offers: offers}, nil, zerolog.Nop())
}

func makeOffer(product uuid.UUID, size uuid.NullUUID, kind storage.OfferKind, source string, price int64) storage.Offer {
	return storage.Offer{
		ID:              uuid.New(),
		ProductID:       product,
		CanonicalSizeID: size,
		Source:          source,
		SourceNativeID:  uuid.NewString(),
		Kind:            kind,
		Price:           price,
		Currency:        "EUR",
		InStock:         true,
		StockQty:        3,
		LastSeenAt:      time.Now().UTC(),
	}
}

func sizeRef() uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.New(), Valid: true}
}

func TestListOpportunitiesDerivesProfitMarginScore(t *testing.T) {
	product := uuid.New()
	size := sizeRef()

	engine := testEngine(
		makeOffer(product, size, storage.KindRetail, "awin", 12000),
		makeOffer(product, size, storage.KindResale, "stockx", 18000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(result.Opportunities))
	}

	opp := result.Opportunities[0]
	if opp.Profit != 6000 {
		t.Fatalf("profit = %d, want 6000", opp.Profit)
	}
	if opp.MarginPct.StringFixed(2) != "50.00" {
		t.Fatalf("margin = %s, want 50.00", opp.MarginPct)
	}
	if opp.Score.StringFixed(2) != "3000.00" {
		t.Fatalf("score = %s, want 3000.00", opp.Score)
	}
	if opp.Currency != "EUR" {
		t.Fatalf("currency = %s, want EUR", opp.Currency)
	}
	if opp.FeasibilityScore <= 0 || opp.RiskLevel == "" {
		t.Fatalf("enrichment missing: %+v", opp)
	}
}

func TestListOpportunitiesSkipsUnprofitablePairs(t *testing.T) {
	product := uuid.New()
	size := sizeRef()

	engine := testEngine(
		makeOffer(product, size, storage.KindRetail, "awin", 18000),
		makeOffer(product, size, storage.KindResale, "stockx", 18000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatalf("equal prices should yield nothing, got %d", len(result.Opportunities))
	}
}

func TestListOpportunitiesMinMarginIsInclusive(t *testing.T) {
	product := uuid.New()
	size := sizeRef()

	// 10000 -> 12000 is exactly 20.00%.
	engine := testEngine(
		makeOffer(product, size, storage.KindRetail, "awin", 10000),
		makeOffer(product, size, storage.KindResale, "stockx", 12000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{
		MinMarginPct: decimal.RequireFromString("20"),
	})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatal("margin exactly at the minimum should be included")
	}

	result, err = engine.ListOpportunities(context.Background(), Filter{
		MinMarginPct: decimal.RequireFromString("20.01"),
	})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatal("margin below the minimum should be excluded")
	}
}

func TestListOpportunitiesOrdering(t *testing.T) {
	size := sizeRef()
	productA := uuid.New()
	productB := uuid.New()
	productC := uuid.New()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(48 * time.Hour)

	// A: profit 6000, margin 50 -> score 3000.
	// B: profit 9000, margin 30 -> score 2700.
	// C: same economics as A but an older retail sighting.
	retailA := makeOffer(productA, size, storage.KindRetail, "awin", 12000)
	retailA.LastSeenAt = newer
	retailC := makeOffer(productC, size, storage.KindRetail, "awin", 12000)
	retailC.LastSeenAt = old

	engine := testEngine(
		retailA,
		makeOffer(productA, size, storage.KindResale, "stockx", 18000),
		makeOffer(productB, size, storage.KindRetail, "awin", 30000),
		makeOffer(productB, size, storage.KindResale, "stockx", 39000),
		retailC,
		makeOffer(productC, size, storage.KindResale, "stockx", 18000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 3 {
		t.Fatalf("opportunities = %d, want 3", len(result.Opportunities))
	}

	if result.Opportunities[0].ProductID != productC {
		t.Fatalf("oldest retail sighting should break the score tie, got %s first", result.Opportunities[0].ProductID)
	}
	if result.Opportunities[1].ProductID != productA {
		t.Fatalf("want product A second, got %s", result.Opportunities[1].ProductID)
	}
	if result.Opportunities[2].ProductID != productB {
		t.Fatalf("lower score should sort last, got %s", result.Opportunities[2].ProductID)
	}
}

func TestListOpportunitiesCurrencyMismatch(t *testing.T) {
	product := uuid.New()
	size := sizeRef()

	retail := makeOffer(product, size, storage.KindRetail, "awin", 12000)
	resale := makeOffer(product, size, storage.KindResale, "stockx", 18000)
	resale.Currency = "USD"

	engine := testEngine(retail, resale)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatal("mixed currencies must not produce an opportunity")
	}
	if len(result.Mismatches) != 1 {
		t.Fatalf("mismatches = %d, want 1", len(result.Mismatches))
	}
	mismatch := result.Mismatches[0]
	if mismatch.RetailCurrency != "EUR" || mismatch.ResaleCurrency != "USD" {
		t.Fatalf("mismatch currencies wrong: %+v", mismatch)
	}
}

func TestListOpportunitiesSizeAgreement(t *testing.T) {
	product := uuid.New()
	sizeA := sizeRef()
	sizeB := sizeRef()

	engine := testEngine(
		makeOffer(product, sizeA, storage.KindRetail, "awin", 12000),
		makeOffer(product, sizeB, storage.KindResale, "stockx", 18000),
		makeOffer(product, uuid.NullUUID{}, storage.KindResale, "goat", 20000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatal("offers at different sizes must not pair")
	}

	// Sizeless retail pairs only with sizeless resale.
	engine = testEngine(
		makeOffer(product, uuid.NullUUID{}, storage.KindRetail, "awin", 12000),
		makeOffer(product, uuid.NullUUID{}, storage.KindResale, "goat", 20000),
		makeOffer(product, sizeA, storage.KindResale, "stockx", 30000),
	)

	result, err = engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(result.Opportunities))
	}
	if result.Opportunities[0].Resale.Source != "goat" {
		t.Fatalf("sizeless retail paired with %s", result.Opportunities[0].Resale.Source)
	}
}

func TestListOpportunitiesIgnoresOutOfStock(t *testing.T) {
	product := uuid.New()
	size := sizeRef()

	retail := makeOffer(product, size, storage.KindRetail, "awin", 12000)
	retail.InStock = false

	engine := testEngine(
		retail,
		makeOffer(product, size, storage.KindResale, "stockx", 18000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatal("out-of-stock retail must not pair")
	}
}

func TestListOpportunitiesSourceFilterAndLimit(t *testing.T) {
	size := sizeRef()
	productA := uuid.New()
	productB := uuid.New()

	engine := testEngine(
		makeOffer(productA, size, storage.KindRetail, "awin", 12000),
		makeOffer(productA, size, storage.KindResale, "stockx", 18000),
		makeOffer(productB, size, storage.KindRetail, "webgains", 10000),
		makeOffer(productB, size, storage.KindResale, "stockx", 16000),
	)

	result, err := engine.ListOpportunities(context.Background(), Filter{Source: "AWIN"})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 1 || result.Opportunities[0].Retail.Source != "awin" {
		t.Fatalf("source filter failed: %+v", result.Opportunities)
	}

	result, err = engine.ListOpportunities(context.Background(), Filter{Limit: 1})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("limit ignored, got %d", len(result.Opportunities))
	}
}
