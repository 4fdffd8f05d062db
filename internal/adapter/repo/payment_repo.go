package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PaymentRepositoryPG implements domain.PaymentRepository.
type PaymentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a payment repository backed by PostgreSQL.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{pool: pool}
}

// Create inserts a pending payment keyed by the processor's session id.
func (r *PaymentRepositoryPG) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payments (id, user_id, stripe_payment_id, amount_cents, status, kind)
VALUES ($1, $2, $3, $4, $5, $6);
`, p.ID, p.UserID, p.StripePaymentID, p.AmountCents, p.Status, p.Kind)
	return err
}

// GetByStripeID fetches a payment by its processor identifier.
func (r *PaymentRepositoryPG) GetByStripeID(ctx context.Context, stripeID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, stripe_payment_id, amount_cents, status, kind, created_at
FROM payments WHERE stripe_payment_id = $1;
`, stripeID).Scan(&p.ID, &p.UserID, &p.StripePaymentID, &p.AmountCents, &p.Status, &p.Kind, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// HasSucceeded reports whether the user has a succeeded payment of the
// given kind.
func (r *PaymentRepositoryPG) HasSucceeded(ctx context.Context, userID string, kind domain.PaymentKind) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM payments
	WHERE user_id = $1 AND kind = $2 AND status = 'succeeded'
);
`, userID, kind).Scan(&exists)
	return exists, err
}

// UpdateStatusByStripeID records the processor's verdict. Payments already
// in a terminal state are left alone so replayed webhooks stay idempotent.
func (r *PaymentRepositoryPG) UpdateStatusByStripeID(ctx context.Context, stripeID string, status domain.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE payments
SET status = $2
WHERE stripe_payment_id = $1 AND status = 'pending';
`, stripeID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, stripe_payment_id, amount_cents, status, kind, created_at
FROM payments
WHERE user_id = $1
ORDER BY created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.StripePaymentID, &p.AmountCents, &p.Status, &p.Kind, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
