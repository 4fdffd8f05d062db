package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"server/internal/domain"
)

const webhookBodyLimit = 1 << 16

type checkoutRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=premium donation"`
	AmountCents int64  `json:"amount_cents"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentCheckout creates a hosted Stripe checkout session and records
// the pending payment keyed by the session id.
func (a *App) PaymentCheckout(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "kind must be premium or donation")
		return
	}
	kind := domain.PaymentKind(req.Kind)

	if kind == domain.PaymentKindPremium {
		if user.IsPremium {
			a.error(w, http.StatusConflict, "conflict", "account is already premium")
			return
		}
	} else if req.AmountCents < 100 {
		a.error(w, http.StatusBadRequest, "bad_request", "donation must be at least $1")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(a.Cfg.FrontendURL + "/payment/success"),
		CancelURL:         stripe.String(a.Cfg.FrontendURL + "/payment/cancel"),
		ClientReferenceID: stripe.String(user.ID),
	}
	params.AddMetadata("user_id", user.ID)
	params.AddMetadata("kind", string(kind))

	if kind == domain.PaymentKindPremium {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(a.Cfg.StripePremiumPriceID),
			Quantity: stripe.Int64(1),
		}}
	} else {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Donation"),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		a.Logger.Error().Err(err).Msg("create checkout session")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	payment := &domain.Payment{
		ID:              id.String(),
		UserID:          user.ID,
		StripePaymentID: sess.ID,
		AmountCents:     sess.AmountTotal,
		Status:          domain.PaymentPending,
		Kind:            kind,
	}
	if err := a.Payments.Create(r.Context(), payment); err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusCreated, checkoutResponse{SessionID: sess.ID, CheckoutURL: sess.URL})
}

// PaymentWebhook handles Stripe's signed event callbacks. Settling a
// pending row is idempotent, so Stripe's redelivery is harmless.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}
	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), a.Cfg.StripeWebhookSecret)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("webhook signature verification failed")
		a.error(w, http.StatusBadRequest, "bad_request", "invalid signature")
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "malformed event")
			return
		}
		if err := a.Payments.UpdateStatusByStripeID(r.Context(), sess.ID, domain.PaymentSucceeded); err != nil {
			a.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("settle payment")
		}
		if sess.Metadata["kind"] == string(domain.PaymentKindPremium) {
			if userID := sess.Metadata["user_id"]; userID != "" {
				if err := a.Users.SetPremium(r.Context(), userID, true); err != nil {
					a.Logger.Error().Err(err).Str("user_id", userID).Msg("grant premium")
				}
			}
		}
	case stripe.EventTypeCheckoutSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "malformed event")
			return
		}
		if err := a.Payments.UpdateStatusByStripeID(r.Context(), sess.ID, domain.PaymentFailed); err != nil {
			a.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("expire payment")
		}
	default:
		// Unhandled event types are acknowledged so Stripe stops
		// retrying them.
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}

type paymentDTO struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *App) PaymentsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	payments, err := a.Payments.ListByUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		items = append(items, paymentDTO{
			ID:          p.ID,
			AmountCents: p.AmountCents,
			Status:      string(p.Status),
			Kind:        string(p.Kind),
			CreatedAt:   p.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
