package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/infra"
)

// Enqueuer is the producer side of the task protocol. Submit creates a
// durable TaskRun row whose id doubles as the broker task id, so clients
// can poll the run without the broker being the source of truth.
type Enqueuer struct {
	client *asynq.Client
	runs   domain.TaskRunRepository
}

// NewEnqueuer wires the broker client and the run store together.
func NewEnqueuer(client *asynq.Client, runs domain.TaskRunRepository) *Enqueuer {
	return &Enqueuer{client: client, runs: runs}
}

// Submit records a pending run and enqueues the task under the run's id.
func (e *Enqueuer) Submit(ctx context.Context, kind domain.TaskKind, userID string, payload any) (*domain.TaskRun, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}

	run := &domain.TaskRun{
		ID:     id.String(),
		Kind:   kind,
		UserID: userID,
		Status: domain.TaskStatusPending,
	}
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create task run: %w", err)
	}

	task := asynq.NewTask(string(kind), body)
	if _, err := e.client.EnqueueContext(ctx, task,
		asynq.TaskID(run.ID),
		asynq.MaxRetry(infra.MaxTaskRetries),
	); err != nil {
		// No worker will ever touch this run; settle it so pollers are
		// not left watching a permanently pending row.
		if merr := e.runs.MarkFailed(ctx, run.ID, domain.TaskErrorInternal, "task was never enqueued"); merr != nil {
			return nil, fmt.Errorf("enqueue %s: %w (orphaned run %s: %v)", kind, err, run.ID, merr)
		}
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return run, nil
}

// Fire enqueues a task with no run row. Used for internal plumbing jobs
// that nobody polls (schedule init, sweeps, bumps).
func (e *Enqueuer) Fire(ctx context.Context, kind domain.TaskKind, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(string(kind), body)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(infra.MaxTaskRetries)); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}
