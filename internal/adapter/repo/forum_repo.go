package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ForumRepositoryPG implements domain.ForumRepository.
type ForumRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewForumRepository creates a forum repository backed by PostgreSQL.
func NewForumRepository(pool *pgxpool.Pool) *ForumRepositoryPG {
	return &ForumRepositoryPG{pool: pool}
}

// CreateThread inserts a new thread.
func (r *ForumRepositoryPG) CreateThread(ctx context.Context, thread *domain.ForumThread) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO forum_threads (id, user_id, title, content, is_pinned)
VALUES ($1, $2, $3, $4, $5);
`, thread.ID, thread.UserID, thread.Title, thread.Content, thread.IsPinned)
	return err
}

const threadSelect = `
SELECT t.id, t.user_id, t.title, t.content, t.is_pinned, t.created_at, t.updated_at,
       COALESCE(u.name, ''), COALESCE(u.avatar_url, ''),
       (SELECT COUNT(*) FROM forum_replies fr WHERE fr.thread_id = t.id AND fr.status = 'completed') AS reply_count,
       GREATEST(t.updated_at, COALESCE((SELECT MAX(fr.created_at) FROM forum_replies fr WHERE fr.thread_id = t.id), t.updated_at)) AS last_activity_at
FROM forum_threads t
LEFT JOIN users u ON u.id = t.user_id
`

// GetThread fetches a thread with its derived list fields.
func (r *ForumRepositoryPG) GetThread(ctx context.Context, id string) (*domain.ForumThread, error) {
	row := r.pool.QueryRow(ctx, threadSelect+`WHERE t.id = $1`, id)
	return scanThread(row)
}

// ListThreads returns a page of threads, pinned first then by recent
// activity, together with the total thread count for pagination.
func (r *ForumRepositoryPG) ListThreads(ctx context.Context, offset, limit int) ([]domain.ForumThread, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_threads`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, threadSelect+`
ORDER BY t.is_pinned DESC, last_activity_at DESC
OFFSET $1 LIMIT $2;
`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []domain.ForumThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *t)
	}
	return items, total, rows.Err()
}

// TouchThread bumps a thread's updated_at so fresh replies float it up.
func (r *ForumRepositoryPG) TouchThread(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE forum_threads SET updated_at = $2 WHERE id = $1`, id, at)
	return err
}

// CreateReply inserts a reply row. Persona replies start out pending with
// empty content and are finished by the worker.
func (r *ForumRepositoryPG) CreateReply(ctx context.Context, reply *domain.ForumReply) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO forum_replies (id, thread_id, user_id, persona_id, parent_id, content, status)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7);
`, reply.ID, reply.ThreadID, reply.UserID, reply.PersonaID, reply.ParentID, reply.Content, reply.Status)
	return err
}

const replySelect = `
SELECT r.id, r.thread_id, COALESCE(r.user_id, ''), COALESCE(r.persona_id, ''), COALESCE(r.parent_id, ''),
       r.content, r.status, r.created_at,
       COALESCE(u.name, ''), COALESCE(u.avatar_url, ''), COALESCE(p.name, '')
FROM forum_replies r
LEFT JOIN users u ON u.id = r.user_id
LEFT JOIN forum_personas p ON p.id = r.persona_id
`

// GetReply fetches one reply.
func (r *ForumRepositoryPG) GetReply(ctx context.Context, id string) (*domain.ForumReply, error) {
	row := r.pool.QueryRow(ctx, replySelect+`WHERE r.id = $1`, id)
	return scanReply(row)
}

// ListReplies returns every reply in a thread in posting order.
func (r *ForumRepositoryPG) ListReplies(ctx context.Context, threadID string) ([]domain.ForumReply, error) {
	rows, err := r.pool.Query(ctx, replySelect+`
WHERE r.thread_id = $1
ORDER BY r.created_at;
`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReplies(rows)
}

// ListRecentCompletedReplies returns the newest completed replies in a
// thread, oldest first, excluding one reply id. Used to build conversation
// context for persona generation.
func (r *ForumRepositoryPG) ListRecentCompletedReplies(ctx context.Context, threadID string, limit int, excludeID string) ([]domain.ForumReply, error) {
	rows, err := r.pool.Query(ctx, `
SELECT * FROM (
`+replySelect+`
	WHERE r.thread_id = $1 AND r.status = 'completed' AND r.id <> $2
	ORDER BY r.created_at DESC
	LIMIT $3
) recent ORDER BY created_at;
`, threadID, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReplies(rows)
}

// FinishReply writes generated content and the final status.
func (r *ForumRepositoryPG) FinishReply(ctx context.Context, id, content string, status domain.ReplyStatus) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE forum_replies SET content = $2, status = $3 WHERE id = $1;
`, id, content, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetReplyStatus updates only the generation status.
func (r *ForumRepositoryPG) SetReplyStatus(ctx context.Context, id string, status domain.ReplyStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE forum_replies SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActivePersonas returns personas eligible to be scheduled.
func (r *ForumRepositoryPG) ListActivePersonas(ctx context.Context) ([]domain.ForumPersona, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name, system_prompt, is_active, created_at
FROM forum_personas
WHERE is_active
ORDER BY created_at;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ForumPersona
	for rows.Next() {
		var p domain.ForumPersona
		if err := rows.Scan(&p.ID, &p.Name, &p.SystemPrompt, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// GetPersona fetches one persona.
func (r *ForumRepositoryPG) GetPersona(ctx context.Context, id string) (*domain.ForumPersona, error) {
	var p domain.ForumPersona
	err := r.pool.QueryRow(ctx, `
SELECT id, name, system_prompt, is_active, created_at
FROM forum_personas WHERE id = $1;
`, id).Scan(&p.ID, &p.Name, &p.SystemPrompt, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateSchedule inserts one (thread, persona) schedule row. The unique
// constraint on the pair makes re-initialization a conflict, which callers
// treat as already scheduled.
func (r *ForumRepositoryPG) CreateSchedule(ctx context.Context, s *domain.ForumAgentSchedule) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO forum_agent_schedules (id, thread_id, persona_id, next_reply_at, reply_count, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (thread_id, persona_id) DO NOTHING;
`, s.ID, s.ThreadID, s.PersonaID, s.NextReplyAt, s.ReplyCount, s.IsActive)
	return err
}

const scheduleColumns = `id, thread_id, persona_id, next_reply_at, reply_count, last_replied_at, is_active, created_at, updated_at`

// ClaimDueSchedules selects due active schedules and pushes next_reply_at
// forward by hold in the same statement, so a sweep running on another
// worker cannot claim the same rows.
func (r *ForumRepositoryPG) ClaimDueSchedules(ctx context.Context, now time.Time, hold time.Duration) ([]domain.ForumAgentSchedule, error) {
	rows, err := r.pool.Query(ctx, `
UPDATE forum_agent_schedules
SET next_reply_at = $1 + make_interval(secs => $2), updated_at = $1
WHERE is_active AND next_reply_at IS NOT NULL AND next_reply_at <= $1
RETURNING `+scheduleColumns+`;
`, now, hold.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ForumAgentSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

// GetSchedule fetches one schedule.
func (r *ForumRepositoryPG) GetSchedule(ctx context.Context, id string) (*domain.ForumAgentSchedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM forum_agent_schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// AdvanceSchedule records a posted reply and the next due time.
func (r *ForumRepositoryPG) AdvanceSchedule(ctx context.Context, id string, replyCount int, nextAt, repliedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE forum_agent_schedules
SET reply_count = $2, next_reply_at = $3, last_replied_at = $4, updated_at = NOW()
WHERE id = $1;
`, id, replyCount, nextAt, repliedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeactivateSchedule stops a persona from revisiting a thread.
func (r *ForumRepositoryPG) DeactivateSchedule(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE forum_agent_schedules
SET is_active = FALSE, next_reply_at = NULL, updated_at = NOW()
WHERE id = $1;
`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BumpSchedules pulls every active schedule in a thread forward so personas
// react sooner after a human posts. Schedules already due before notAfter
// are left alone.
func (r *ForumRepositoryPG) BumpSchedules(ctx context.Context, threadID string, notAfter time.Time) error {
	_, err := r.pool.Exec(ctx, `
UPDATE forum_agent_schedules
SET next_reply_at = $2, updated_at = NOW()
WHERE thread_id = $1 AND is_active AND next_reply_at > $2;
`, threadID, notAfter)
	return err
}

func scanThread(row pgx.Row) (*domain.ForumThread, error) {
	var t domain.ForumThread
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Content,
		&t.IsPinned,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.AuthorName,
		&t.AuthorAvatar,
		&t.ReplyCount,
		&t.LastActivityAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanReply(row pgx.Row) (*domain.ForumReply, error) {
	var rep domain.ForumReply
	if err := row.Scan(
		&rep.ID,
		&rep.ThreadID,
		&rep.UserID,
		&rep.PersonaID,
		&rep.ParentID,
		&rep.Content,
		&rep.Status,
		&rep.CreatedAt,
		&rep.AuthorName,
		&rep.AuthorImage,
		&rep.PersonaName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rep, nil
}

func collectReplies(rows pgx.Rows) ([]domain.ForumReply, error) {
	var items []domain.ForumReply
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rep)
	}
	return items, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.ForumAgentSchedule, error) {
	var s domain.ForumAgentSchedule
	if err := row.Scan(
		&s.ID,
		&s.ThreadID,
		&s.PersonaID,
		&s.NextReplyAt,
		&s.ReplyCount,
		&s.LastRepliedAt,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
