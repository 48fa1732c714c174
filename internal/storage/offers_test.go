package storage

import "testing"

func TestOfferChangedGatesHistoryAppend(t *testing.T) {
	next := Offer{Price: 12000, InStock: true}

	cases := []struct {
		name        string
		prevPrice   int64
		prevInStock bool
		want        bool
	}{
		{"identical re-ingest", 12000, true, false},
		{"price moved", 11500, true, true},
		{"came back in stock", 12000, false, true},
		{"both fields moved", 11500, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := offerChanged(tc.prevPrice, tc.prevInStock, next); got != tc.want {
				t.Fatalf("offerChanged(%d, %v) = %v, want %v", tc.prevPrice, tc.prevInStock, got, tc.want)
			}
		})
	}
}
