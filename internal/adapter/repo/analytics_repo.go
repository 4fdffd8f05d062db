package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AnalyticsRepositoryPG implements AnalyticsRepository using PostgreSQL.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{pool: pool}
}

// IncrementCounters upserts metrics for the provided day.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	query := `
INSERT INTO analytics_daily (
    day, visitors, ai_requests, request_success, request_fail, analyses_completed, certifications_completed
) VALUES (
    $1, $2, $3, $4, $5, $6, $7
) ON CONFLICT (day) DO UPDATE SET
    visitors = analytics_daily.visitors + EXCLUDED.visitors,
    ai_requests = analytics_daily.ai_requests + EXCLUDED.ai_requests,
    request_success = analytics_daily.request_success + EXCLUDED.request_success,
    request_fail = analytics_daily.request_fail + EXCLUDED.request_fail,
    analyses_completed = analytics_daily.analyses_completed + EXCLUDED.analyses_completed,
    certifications_completed = analytics_daily.certifications_completed + EXCLUDED.certifications_completed,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query,
		day,
		counters["visitors"],
		counters["ai_requests"],
		counters["request_success"],
		counters["request_fail"],
		counters["analyses_completed"],
		counters["certifications_completed"],
	)
	return err
}

// GetSummary returns the latest day's stats.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.pool.QueryRow(ctx, `
SELECT day, visitors, ai_requests, request_success, request_fail, analyses_completed, certifications_completed, created_at, updated_at
FROM analytics_daily
ORDER BY day DESC
LIMIT 1;
`)

	var summary domain.AnalyticsDaily
	if err := row.Scan(
		&summary.Day,
		&summary.Visitors,
		&summary.AIRequests,
		&summary.RequestSuccess,
		&summary.RequestFail,
		&summary.AnalysesCompleted,
		&summary.CertificationsCompleted,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}
