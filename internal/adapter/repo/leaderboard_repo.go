package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// LeaderboardRepositoryPG implements domain.LeaderboardRepository. Rankings
// only include users who kept show_on_leaderboard enabled.
type LeaderboardRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a leaderboard repository backed by PostgreSQL.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepositoryPG {
	return &LeaderboardRepositoryPG{pool: pool}
}

// medianNorwoodSelect ranks users by the rounded median stage across all of
// their analyses. Direction is interpolated by the caller.
const medianNorwoodSelect = `
SELECT COALESCE(NULLIF(u.name, ''), 'Anonymous'),
       COALESCE(u.avatar_url, ''),
       COALESCE(u.country, ''),
       ROUND(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY a.norwood_stage))::int AS median_stage
FROM users u
JOIN analyses a ON a.user_id = u.id
WHERE u.show_on_leaderboard AND a.norwood_stage > 0
GROUP BY u.id
ORDER BY median_stage %s, u.created_at
LIMIT $1;
`

// BestNorwood returns users with the lowest median stage.
func (r *LeaderboardRepositoryPG) BestNorwood(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, medianQuery("ASC"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNorwoodEntries(rows)
}

// WorstNorwood returns users with the highest median stage.
func (r *LeaderboardRepositoryPG) WorstNorwood(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, medianQuery("DESC"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNorwoodEntries(rows)
}

// InsecurityIndex ranks users by weighted platform usage: completed
// certifications count 50, analyses 10, counseling sessions 5. Users with a
// zero score are omitted.
func (r *LeaderboardRepositoryPG) InsecurityIndex(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT COALESCE(NULLIF(u.name, ''), 'Anonymous'),
       COALESCE(u.avatar_url, ''),
       COALESCE(u.country, ''),
       (SELECT COUNT(*) FROM certifications c WHERE c.user_id = u.id AND c.status = 'completed') * 50
     + (SELECT COUNT(*) FROM analyses a WHERE a.user_id = u.id) * 10
     + (SELECT COUNT(*) FROM counseling_sessions s WHERE s.user_id = u.id) * 5 AS insecurity
FROM users u
WHERE u.show_on_leaderboard
GROUP BY u.id
HAVING (SELECT COUNT(*) FROM certifications c WHERE c.user_id = u.id AND c.status = 'completed') * 50
     + (SELECT COUNT(*) FROM analyses a WHERE a.user_id = u.id) * 10
     + (SELECT COUNT(*) FROM counseling_sessions s WHERE s.user_id = u.id) * 5 > 0
ORDER BY insecurity DESC, u.created_at
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.AvatarURL, &e.Country, &e.Score); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func medianQuery(direction string) string {
	if direction != "ASC" && direction != "DESC" {
		direction = "ASC"
	}
	return fmt.Sprintf(medianNorwoodSelect, direction)
}

func collectNorwoodEntries(rows pgx.Rows) ([]domain.LeaderboardEntry, error) {
	var items []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.AvatarURL, &e.Country, &e.NorwoodStage); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
