package domain

import "time"

// PaymentStatus mirrors the processor's terminal payment states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentKind distinguishes the one-time premium unlock from donations.
type PaymentKind string

const (
	PaymentKindPremium  PaymentKind = "premium"
	PaymentKindDonation PaymentKind = "donation"
)

// Payment records one processor transaction for a user.
type Payment struct {
	ID              string
	UserID          string
	StripePaymentID string
	AmountCents     int64
	Status          PaymentStatus
	Kind            PaymentKind
	CreatedAt       time.Time
}
