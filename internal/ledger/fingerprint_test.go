package ledger

import (
	"testing"

	"github.com/google/uuid"

	"sneaker-arb-alerts/internal/storage"
)

func fingerprintFixture() Opportunity {
	return Opportunity{
		ProductID:       uuid.MustParse("5e0cf0e4-8c4f-4aad-9a27-9c983c3a4f37"),
		CanonicalSizeID: uuid.NullUUID{UUID: uuid.MustParse("c1ffbd8a-98e3-4a02-9f70-803ce4b48d27"), Valid: true},
		Retail:          storage.Offer{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Price: 12000},
		Resale:          storage.Offer{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Price: 18000},
	}
}

func TestFingerprintStable(t *testing.T) {
	a := fingerprintFixture()
	b := fingerprintFixture()

	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("identical opportunities must share a fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(a.Fingerprint()))
	}
}

func TestFingerprintIgnoresSubBucketJitter(t *testing.T) {
	a := fingerprintFixture()
	b := fingerprintFixture()
	b.Resale.Price += 30

	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("a move inside the price bucket must not change the fingerprint")
	}

	c := fingerprintFixture()
	c.Resale.Price += 100
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("a full bucket move must change the fingerprint")
	}
}

func TestFingerprintDistinguishesSizeless(t *testing.T) {
	a := fingerprintFixture()
	b := fingerprintFixture()
	b.CanonicalSizeID = uuid.NullUUID{}

	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("sized and sizeless variants must differ")
	}
}
