package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func TestPaymentCheckoutRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1"}

	req := asUser(jsonRequest(t, "POST", "/api/payments/checkout", map[string]any{"kind": "lifetime"}), "u1")
	rr := httptest.NewRecorder()
	env.app.PaymentCheckout(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPaymentCheckoutRejectsTinyDonation(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1"}

	req := asUser(jsonRequest(t, "POST", "/api/payments/checkout", map[string]any{
		"kind":         "donation",
		"amount_cents": 50,
	}), "u1")
	rr := httptest.NewRecorder()
	env.app.PaymentCheckout(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPaymentCheckoutConflictsWhenAlreadyPremium(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1", IsPremium: true}

	req := asUser(jsonRequest(t, "POST", "/api/payments/checkout", map[string]any{"kind": "premium"}), "u1")
	rr := httptest.NewRecorder()
	env.app.PaymentCheckout(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rr := httptest.NewRecorder()
	env.app.PaymentWebhook(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPaymentsListReturnsOwnRows(t *testing.T) {
	env := newTestEnv(t)
	env.payments.payments["cs_1"] = &domain.Payment{
		ID:              "p1",
		UserID:          "u1",
		StripePaymentID: "cs_1",
		AmountCents:     999,
		Status:          domain.PaymentSucceeded,
		Kind:            domain.PaymentKindPremium,
	}
	env.payments.payments["cs_2"] = &domain.Payment{
		ID:              "p2",
		UserID:          "other",
		StripePaymentID: "cs_2",
		Status:          domain.PaymentPending,
		Kind:            domain.PaymentKindDonation,
	}

	rr := httptest.NewRecorder()
	env.app.PaymentsList(rr, asUser(httptest.NewRequest("GET", "/api/payments", nil), "u1"))

	payload := decodeBody(t, rr)
	items, _ := payload["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v, want only the caller's payments", payload["items"])
	}
	item := items[0].(map[string]any)
	if item["amount_cents"] != float64(999) || item["kind"] != "premium" {
		t.Fatalf("item = %v", item)
	}
}
