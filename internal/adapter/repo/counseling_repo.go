package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CounselingRepositoryPG implements domain.CounselingRepository.
type CounselingRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCounselingRepository creates a counseling repository backed by PostgreSQL.
func NewCounselingRepository(pool *pgxpool.Pool) *CounselingRepositoryPG {
	return &CounselingRepositoryPG{pool: pool}
}

// CreateSession inserts a new chat session.
func (r *CounselingRepositoryPG) CreateSession(ctx context.Context, s *domain.CounselingSession) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO counseling_sessions (id, user_id, title)
VALUES ($1, $2, $3);
`, s.ID, s.UserID, s.Title)
	return err
}

// GetSession fetches a session owned by the user, with its messages in
// posting order.
func (r *CounselingRepositoryPG) GetSession(ctx context.Context, id, userID string) (*domain.CounselingSession, error) {
	var s domain.CounselingSession
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, COALESCE(title, ''), created_at, updated_at
FROM counseling_sessions
WHERE id = $1 AND user_id = $2;
`, id, userID).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, session_id, role, content, status, created_at
FROM counseling_messages
WHERE session_id = $1
ORDER BY created_at;
`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.CounselingMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		s.Messages = append(s.Messages, m)
	}
	return &s, rows.Err()
}

// ListSessions returns the user's sessions, most recently updated first,
// without message bodies.
func (r *CounselingRepositoryPG) ListSessions(ctx context.Context, userID string) ([]domain.CounselingSession, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, COALESCE(title, ''), created_at, updated_at
FROM counseling_sessions
WHERE user_id = $1
ORDER BY updated_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.CounselingSession
	for rows.Next() {
		var s domain.CounselingSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// DeleteSession removes a session and cascades to its messages.
func (r *CounselingRepositoryPG) DeleteSession(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM counseling_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSessionTitle writes the derived title.
func (r *CounselingRepositoryPG) SetSessionTitle(ctx context.Context, id, title string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE counseling_sessions SET title = $2, updated_at = NOW() WHERE id = $1;
`, id, title)
	return err
}

// CreateMessage inserts one turn and bumps the session's updated_at.
func (r *CounselingRepositoryPG) CreateMessage(ctx context.Context, m *domain.CounselingMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO counseling_messages (id, session_id, role, content, status)
VALUES ($1, $2, $3, $4, $5);
`, m.ID, m.SessionID, m.Role, m.Content, m.Status); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE counseling_sessions SET updated_at = NOW() WHERE id = $1;
`, m.SessionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetMessage fetches one message.
func (r *CounselingRepositoryPG) GetMessage(ctx context.Context, id string) (*domain.CounselingMessage, error) {
	var m domain.CounselingMessage
	err := r.pool.QueryRow(ctx, `
SELECT id, session_id, role, content, status, created_at
FROM counseling_messages WHERE id = $1;
`, id).Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FinishMessage writes generated content and the final status.
func (r *CounselingRepositoryPG) FinishMessage(ctx context.Context, id, content string, status domain.ReplyStatus) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE counseling_messages SET content = $2, status = $3 WHERE id = $1;
`, id, content, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetMessageStatus updates only the generation status.
func (r *CounselingRepositoryPG) SetMessageStatus(ctx context.Context, id string, status domain.ReplyStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE counseling_messages SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
