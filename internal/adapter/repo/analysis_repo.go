package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AnalysisRepositoryPG implements domain.AnalysisRepository.
type AnalysisRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAnalysisRepository creates an analysis repository backed by PostgreSQL.
func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepositoryPG {
	return &AnalysisRepositoryPG{pool: pool}
}

const analysisColumns = `id, user_id, image_key, norwood_stage, confidence, title, description, analysis_text, reasoning, created_at`

// Create inserts a completed analysis record.
func (r *AnalysisRepositoryPG) Create(ctx context.Context, a *domain.Analysis) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO analyses (id, user_id, image_key, norwood_stage, confidence, title, description, analysis_text, reasoning)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`, a.ID, a.UserID, a.ImageKey, a.NorwoodStage, a.Confidence, a.Title, a.Description, a.AnalysisText, a.Reasoning)
	return err
}

// ListByUser returns the user's history, most recent first.
func (r *AnalysisRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// ListRecentByUser returns the latest analyses used as counseling context.
func (r *AnalysisRepositoryPG) ListRecentByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	return r.ListByUser(ctx, userID, limit)
}

// GetForUser fetches one analysis owned by the user.
func (r *AnalysisRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.Analysis, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE id = $1 AND user_id = $2;
`, id, userID)
	a, err := scanAnalysis(row)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an analysis owned by the user.
func (r *AnalysisRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectAnalyses(rows pgx.Rows) ([]domain.Analysis, error) {
	var items []domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func scanAnalysis(row pgx.Row) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ImageKey,
		&a.NorwoodStage,
		&a.Confidence,
		&a.Title,
		&a.Description,
		&a.AnalysisText,
		&a.Reasoning,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
