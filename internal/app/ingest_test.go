package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"sneaker-arb-alerts/internal/service"
	"sneaker-arb-alerts/internal/sizing"
)

func TestRecordRejectedIsolatesBadRecords(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid fields", fmt.Errorf("ingest: %w", service.ErrInvalidObservation), true},
		{"unmapped size", fmt.Errorf("resolve size EU 42 (men): %w", sizing.ErrNotFound), true},
		{"storage failure", errors.New("upsert offer: connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := recordRejected(tc.err); got != tc.want {
				t.Fatalf("recordRejected(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestToObservationRejectsMalformedFields(t *testing.T) {
	valid := observationRecord{
		ProductID:      uuid.New().String(),
		Source:         "awin",
		SourceNativeID: "sku-1",
		Kind:           "retail",
		Price:          12000,
		Currency:       "EUR",
		SeenAt:         "2026-08-20T10:00:00Z",
	}

	if _, err := valid.toObservation(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*observationRecord)
	}{
		{"bad product id", func(r *observationRecord) { r.ProductID = "not-a-uuid" }},
		{"bad seen_at", func(r *observationRecord) { r.SeenAt = "yesterday" }},
		{"bad cross check value", func(r *observationRecord) { r.CrossCheckValue = "forty-two" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := valid
			tc.mutate(&record)
			if _, err := record.toObservation(); err == nil {
				t.Fatal("malformed record must be rejected")
			}
		})
	}
}
