package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/llm"
	"server/internal/storage"
)

// Firer enqueues follow-up tasks that nobody polls.
type Firer interface {
	Fire(ctx context.Context, kind domain.TaskKind, payload any) error
}

// Handler owns every queue consumer. All handlers share one shape: mark the
// run started, execute the body, then record exactly one terminal outcome.
type Handler struct {
	cfg        *infra.Config
	logger     infra.Logger
	llm        *llm.Client
	store      *storage.FileStore
	enqueuer   Firer
	users      domain.UserRepository
	runs       domain.TaskRunRepository
	analyses   domain.AnalysisRepository
	certs      domain.CertificationRepository
	forum      domain.ForumRepository
	counseling domain.CounselingRepository
	analytics  domain.AnalyticsRepository
}

// HandlerOptions collects the handler dependencies.
type HandlerOptions struct {
	Config     *infra.Config
	Logger     infra.Logger
	LLM        *llm.Client
	Store      *storage.FileStore
	Enqueuer   Firer
	Users      domain.UserRepository
	Runs       domain.TaskRunRepository
	Analyses   domain.AnalysisRepository
	Certs      domain.CertificationRepository
	Forum      domain.ForumRepository
	Counseling domain.CounselingRepository
	Analytics  domain.AnalyticsRepository
}

// NewHandler constructs the consumer set.
func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		cfg:        opts.Config,
		logger:     opts.Logger,
		llm:        opts.LLM,
		store:      opts.Store,
		enqueuer:   opts.Enqueuer,
		users:      opts.Users,
		runs:       opts.Runs,
		analyses:   opts.Analyses,
		certs:      opts.Certs,
		forum:      opts.Forum,
		counseling: opts.Counseling,
		analytics:  opts.Analytics,
	}
}

// Register binds every task kind onto the broker mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(string(domain.TaskKindAnalyzeImage), h.run(h.handleAnalyzeImage))
	mux.HandleFunc(string(domain.TaskKindValidatePhoto), h.run(h.handleValidatePhoto))
	mux.HandleFunc(string(domain.TaskKindDiagnose), h.run(h.handleDiagnose))
	mux.HandleFunc(string(domain.TaskKindCounselingReply), h.run(h.handleCounselingReply))
	mux.HandleFunc(string(domain.TaskKindForumInitAgents), h.run(h.handleForumInit))
	mux.HandleFunc(string(domain.TaskKindForumAgentReply), h.run(h.handleForumAgentReply))
	mux.HandleFunc(string(domain.TaskKindForumSweep), h.run(h.handleForumSweep))
	mux.HandleFunc(string(domain.TaskKindForumBumpOnReply), h.run(h.handleForumBump))
}

// failure pairs a closed error kind with the underlying cause.
type failure struct {
	kind domain.TaskErrorKind
	err  error
}

func fail(kind domain.TaskErrorKind, err error) *failure {
	return &failure{kind: kind, err: err}
}

// classify maps well-known errors onto the closed kind set. LLM transport
// and schema problems are upstream; everything unrecognized is internal.
func classify(err error) domain.TaskErrorKind {
	switch {
	case errors.Is(err, llm.ErrNoStructuredResult), errors.Is(err, domain.ErrProviderFailure):
		return domain.TaskErrorUpstream
	case errors.Is(err, domain.ErrNotFound):
		return domain.TaskErrorNotFound
	case errors.Is(err, domain.ErrInvalidState):
		return domain.TaskErrorValidation
	default:
		return domain.TaskErrorInternal
	}
}

type taskBody func(ctx context.Context, t *asynq.Task) (any, *failure)

// run wraps a body with the task-run lifecycle. A terminal failure kind is
// recorded and swallowed so the broker does not blind-retry it; only
// upstream failures propagate into the broker's attempt budget.
func (h *Handler) run(body taskBody) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		taskID, hasRun := asynq.GetTaskID(ctx)
		if hasRun {
			if err := h.runs.MarkStarted(ctx, taskID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("mark started: %w", err)
			}
		}

		result, f := body(ctx, t)
		if f == nil {
			var encoded []byte
			if result != nil {
				var err error
				encoded, err = json.Marshal(result)
				if err != nil {
					f = fail(domain.TaskErrorInternal, fmt.Errorf("encode result: %w", err))
				}
			}
			if f == nil {
				if hasRun {
					if err := h.runs.MarkCompleted(ctx, taskID, encoded); err != nil && !errors.Is(err, domain.ErrNotFound) {
						return fmt.Errorf("mark completed: %w", err)
					}
				}
				return nil
			}
		}

		h.logger.Error().
			Err(f.err).
			Str("task_id", taskID).
			Str("task_type", t.Type()).
			Str("error_kind", string(f.kind)).
			Msg("task failed")

		// A retryable failure with budget left keeps the run in started so
		// a later attempt can still complete it.
		retryCount, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if f.kind.Retryable() && retryCount < maxRetry {
			return f.err
		}

		if hasRun {
			if err := h.runs.MarkFailed(ctx, taskID, f.kind, f.err.Error()); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("mark failed: %w", err)
			}
		}
		if f.kind.Retryable() {
			return f.err
		}
		return nil
	}
}

func decodePayload[T any](t *asynq.Task) (T, *failure) {
	var payload T
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fail(domain.TaskErrorInternal, fmt.Errorf("decode payload: %w", err))
	}
	return payload, nil
}
