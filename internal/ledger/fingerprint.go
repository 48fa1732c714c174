package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// fingerprintBucket coarsens prices before hashing so sub-unit jitter does
// not re-trigger a delivered opportunity, while a meaningful move does.
const fingerprintBucket = 100

// Fingerprint is a stable hash identifying this opportunity for
// deduplication: product, canonical size, the two offer rows, and the
// bucketed price pair.
func (o *Opportunity) Fingerprint() string {
	sizeID := "sizeless"
	if o.CanonicalSizeID.Valid {
		sizeID = o.CanonicalSizeID.UUID.String()
	}

	payload := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		o.ProductID,
		sizeID,
		o.Retail.ID,
		o.Resale.ID,
		bucketPrice(o.Retail.Price),
		bucketPrice(o.Resale.Price),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func bucketPrice(price int64) int64 {
	half := int64(fingerprintBucket / 2)
	return (price + half) / fingerprintBucket
}
