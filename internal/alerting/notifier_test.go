package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testNotification() Notification {
	return Notification{
		RuleID:      "b7a4e0cc-9a44-4e3f-8f7d-1c2f3a4b5c6d",
		RuleName:    "eu flips",
		GeneratedAt: time.Now().UTC(),
		Opportunities: []OpportunityPayload{{
			ProductID:    "5e0cf0e4-8c4f-4aad-9a27-9c983c3a4f37",
			RetailSource: "awin",
			RetailPrice:  12000,
			ResaleSource: "stockx",
			ResalePrice:  18000,
			Currency:     "EUR",
			Profit:       6000,
			MarginPct:    "50.00",
		}},
		Summary: Summary{TotalOpportunities: 1, AvgMarginPct: "50.00", TotalPotentialProfit: 6000},
	}
}

func TestWebhookNotifierSuccess(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookOptions{Timeout: time.Second, Attempts: 3}, testLogger())
	if err := notifier.Notify(context.Background(), srv.URL, testNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got.RuleName != "eu flips" {
		t.Fatalf("payload rule name = %q", got.RuleName)
	}
	if len(got.Opportunities) != 1 || got.Opportunities[0].Profit != 6000 {
		t.Fatalf("payload opportunities wrong: %+v", got.Opportunities)
	}
}

func TestWebhookNotifierExhaustsRetryBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookOptions{Timeout: time.Second, Attempts: 3, Backoff: 0}, testLogger())
	err := notifier.Notify(context.Background(), srv.URL, testNotification())
	if err == nil {
		t.Fatal("expected delivery failure")
	}

	var delivery *DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if delivery.Attempts != 3 || delivery.LastStatus != http.StatusInternalServerError {
		t.Fatalf("delivery error = %+v", delivery)
	}
	if calls != 3 {
		t.Fatalf("requests = %d, want 3", calls)
	}
}

func TestWebhookNotifierRecoversMidBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookOptions{Timeout: time.Second, Attempts: 3, Backoff: 0}, testLogger())
	if err := notifier.Notify(context.Background(), srv.URL, testNotification()); err != nil {
		t.Fatalf("Notify should succeed on the second attempt: %v", err)
	}
	if calls != 2 {
		t.Fatalf("requests = %d, want 2", calls)
	}
}

func TestWebhookNotifierEmptyURL(t *testing.T) {
	notifier := NewWebhookNotifier(WebhookOptions{}, testLogger())
	if err := notifier.Notify(context.Background(), "  ", testNotification()); err == nil {
		t.Fatal("empty webhook url must fail")
	}
}
