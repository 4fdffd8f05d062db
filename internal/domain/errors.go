package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPremiumRequired = errors.New("premium required")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrSlotApproved    = errors.New("photo slot already approved")
	ErrOnCooldown      = errors.New("certification cooldown active")
	ErrProviderFailure = errors.New("provider failure")
)

// TaskErrorKind is a closed classification of task failures so callers can
// distinguish retryable upstream problems from terminal ones.
type TaskErrorKind string

const (
	TaskErrorUpstream   TaskErrorKind = "upstream"
	TaskErrorValidation TaskErrorKind = "validation"
	TaskErrorNotFound   TaskErrorKind = "not_found"
	TaskErrorInternal   TaskErrorKind = "internal"
)

// Retryable reports whether the broker should re-attempt a task that failed
// with this kind. Only upstream failures are worth retrying blindly.
func (k TaskErrorKind) Retryable() bool {
	return k == TaskErrorUpstream
}
