package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// TaskRunRepositoryPG implements domain.TaskRunRepository.
//
// The UPDATE statements carry the monotonicity invariant: a row already in a
// terminal state matches no WHERE clause, so late or duplicate worker writes
// are silently dropped.
type TaskRunRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTaskRunRepository creates a task run repository backed by PostgreSQL.
func NewTaskRunRepository(pool *pgxpool.Pool) *TaskRunRepositoryPG {
	return &TaskRunRepositoryPG{pool: pool}
}

// Create inserts a new pending task row at submission time.
func (r *TaskRunRepositoryPG) Create(ctx context.Context, run *domain.TaskRun) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO task_runs (id, kind, user_id, status)
VALUES ($1, $2, $3, $4);
`, run.ID, run.Kind, run.UserID, domain.TaskStatusPending)
	return err
}

// GetByID fetches a task run by its identifier.
func (r *TaskRunRepositoryPG) GetByID(ctx context.Context, id string) (*domain.TaskRun, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, kind, user_id, status, result, error_kind, error_message, attempts, created_at, updated_at
FROM task_runs
WHERE id = $1;
`, id)
	var run domain.TaskRun
	var result []byte
	var errKind, errMsg *string
	if err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.UserID,
		&run.Status,
		&result,
		&errKind,
		&errMsg,
		&run.Attempts,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	run.Result = result
	if errKind != nil {
		run.ErrorKind = domain.TaskErrorKind(*errKind)
	}
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

// MarkStarted records that a worker picked the task up and counts the attempt.
func (r *TaskRunRepositoryPG) MarkStarted(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE task_runs
SET status = $2, attempts = attempts + 1, updated_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'failed');
`, id, domain.TaskStatusStarted)
	return err
}

// MarkCompleted writes the terminal success state with its result payload.
func (r *TaskRunRepositoryPG) MarkCompleted(ctx context.Context, id string, result []byte) error {
	_, err := r.pool.Exec(ctx, `
UPDATE task_runs
SET status = $2, result = $3, updated_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'failed');
`, id, domain.TaskStatusCompleted, nullableBytes(result))
	return err
}

// MarkFailed writes the terminal failure state with its classified error.
func (r *TaskRunRepositoryPG) MarkFailed(ctx context.Context, id string, kind domain.TaskErrorKind, msg string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE task_runs
SET status = $2, error_kind = $3, error_message = $4, updated_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'failed');
`, id, domain.TaskStatusFailed, string(kind), msg)
	return err
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
