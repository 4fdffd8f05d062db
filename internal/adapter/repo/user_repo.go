package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

const userColumns = `id, google_sub, email, name, avatar_url, locale, country, is_premium, is_admin, free_analyses_remaining, show_on_leaderboard, created_at, updated_at`

// UpsertByGoogleSub inserts or updates a user based on the Google sub value.
func (r *UserRepositoryPG) UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
INSERT INTO users (id, google_sub, email, name, avatar_url, locale, country)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (google_sub) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    avatar_url = EXCLUDED.avatar_url,
    locale = EXCLUDED.locale,
    country = COALESCE(NULLIF(EXCLUDED.country, ''), users.country),
    updated_at = NOW()
RETURNING ` + userColumns + `;
`
	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.GoogleSub,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.Locale,
		user.Country,
	)
	return scanUser(row)
}

// GetByID fetches a user by its identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail fetches a user by email address.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// DecrementFreeAnalyses burns one free analysis, never going below zero.
func (r *UserRepositoryPG) DecrementFreeAnalyses(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE users
SET free_analyses_remaining = GREATEST(free_analyses_remaining - 1, 0),
    updated_at = NOW()
WHERE id = $1
  AND NOT is_premium
  AND NOT is_admin;
`, userID)
	return err
}

// SetPremium flips the premium flag after a successful payment.
func (r *UserRepositoryPG) SetPremium(ctx context.Context, userID string, premium bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_premium = $2, updated_at = NOW() WHERE id = $1`, userID, premium)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetFlagsByEmail is used by the operator tool to flag accounts.
func (r *UserRepositoryPG) SetFlagsByEmail(ctx context.Context, email string, premium, admin bool) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET is_premium = $2, is_admin = $3, updated_at = NOW() WHERE email = $1;
`, email, premium, admin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetLeaderboardVisibility toggles whether the user appears on rankings.
func (r *UserRepositoryPG) SetLeaderboardVisibility(ctx context.Context, userID string, visible bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET show_on_leaderboard = $2, updated_at = NOW() WHERE id = $1`, userID, visible)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.GoogleSub,
		&u.Email,
		&u.Name,
		&u.AvatarURL,
		&u.Locale,
		&u.Country,
		&u.IsPremium,
		&u.IsAdmin,
		&u.FreeAnalysesRemaining,
		&u.ShowOnLeaderboard,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
