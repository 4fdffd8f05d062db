package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderAnthropic is the token slot for the LLM vendor API key.
const ProviderAnthropic = "anthropic"

// CredentialRepositoryPG implements domain.CredentialRepository. API keys
// live in the database so workers pick them up without a deploy.
type CredentialRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a credential repository backed by PostgreSQL.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepositoryPG {
	return &CredentialRepositoryPG{pool: pool}
}

// Token returns the stored token for a provider, empty when none is set.
func (r *CredentialRepositoryPG) Token(ctx context.Context, provider string) (string, error) {
	var token string
	err := r.pool.QueryRow(ctx, `
SELECT token FROM integration_tokens WHERE provider = $1;
`, provider).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the token for a provider.
func (r *CredentialRepositoryPG) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO integration_tokens (provider, token)
VALUES ($1, $2)
ON CONFLICT (provider) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW();
`, provider, token)
	return err
}
