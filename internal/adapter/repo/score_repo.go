package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ScoreRepositoryPG implements domain.ScoreRepository.
type ScoreRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a score repository backed by PostgreSQL.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepositoryPG {
	return &ScoreRepositoryPG{pool: pool}
}

// Create records one finished round.
func (r *ScoreRepositoryPG) Create(ctx context.Context, score *domain.GameScore) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO game_scores (id, user_id, score, highest_tile, is_win)
VALUES ($1, $2, $3, $4, $5);
`, score.ID, score.UserID, score.Score, score.HighestTile, score.IsWin)
	return err
}

// BestByUser returns the user's highest score.
func (r *ScoreRepositoryPG) BestByUser(ctx context.Context, userID string) (*domain.GameScore, error) {
	var s domain.GameScore
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, score, highest_tile, is_win, created_at
FROM game_scores
WHERE user_id = $1
ORDER BY score DESC
LIMIT 1;
`, userID).Scan(&s.ID, &s.UserID, &s.Score, &s.HighestTile, &s.IsWin, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Top returns the best score per player, highest first.
func (r *ScoreRepositoryPG) Top(ctx context.Context, limit int) ([]domain.GameScore, error) {
	rows, err := r.pool.Query(ctx, `
SELECT * FROM (
	SELECT DISTINCT ON (g.user_id)
	       g.id, g.user_id, g.score, g.highest_tile, g.is_win, g.created_at,
	       COALESCE(u.name, '') AS player_name, COALESCE(u.avatar_url, '') AS player_avatar
	FROM game_scores g
	JOIN users u ON u.id = g.user_id
	ORDER BY g.user_id, g.score DESC
) best
ORDER BY score DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.GameScore
	for rows.Next() {
		var s domain.GameScore
		if err := rows.Scan(&s.ID, &s.UserID, &s.Score, &s.HighestTile, &s.IsWin, &s.CreatedAt, &s.PlayerName, &s.PlayerAvatar); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
