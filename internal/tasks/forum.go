package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/llm"
)

// sweepHold is how far the sweep pushes a claimed schedule forward before
// the reply task sets the real backoff. It bounds duplicate claims when a
// reply task dies mid-flight.
const sweepHold = 10 * time.Minute

// handleForumInit seeds persona schedules for a fresh thread: three to five
// random active personas with first replies staggered a couple of minutes
// apart.
func (h *Handler) handleForumInit(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[ForumInitPayload](t)
	if f != nil {
		return nil, f
	}

	personas, err := h.forum.ListActivePersonas(ctx)
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	if len(personas) == 0 {
		h.logger.Warn().Str("thread_id", payload.ThreadID).Msg("no active personas to schedule")
		return map[string]int{"scheduled": 0}, nil
	}

	count := 3 + rand.IntN(3)
	if count > len(personas) {
		count = len(personas)
	}
	rand.Shuffle(len(personas), func(i, j int) {
		personas[i], personas[j] = personas[j], personas[i]
	})

	now := time.Now().UTC()
	scheduled := 0
	for i, persona := range personas[:count] {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fail(domain.TaskErrorInternal, err)
		}
		nextAt := now.Add(time.Duration(2+i)*time.Minute + time.Duration(rand.IntN(60))*time.Second)
		if err := h.forum.CreateSchedule(ctx, &domain.ForumAgentSchedule{
			ID:          id.String(),
			ThreadID:    payload.ThreadID,
			PersonaID:   persona.ID,
			NextReplyAt: &nextAt,
			IsActive:    true,
		}); err != nil {
			return nil, fail(domain.TaskErrorInternal, err)
		}
		scheduled++
	}

	return map[string]int{"scheduled": scheduled}, nil
}

// handleForumSweep claims every due schedule and enqueues one reply task
// each. Registered on the scheduler to run every minute.
func (h *Handler) handleForumSweep(ctx context.Context, t *asynq.Task) (any, *failure) {
	due, err := h.forum.ClaimDueSchedules(ctx, time.Now().UTC(), sweepHold)
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	for _, schedule := range due {
		if err := h.enqueuer.Fire(ctx, domain.TaskKindForumAgentReply, ForumAgentReplyPayload{
			ScheduleID: schedule.ID,
			ThreadID:   schedule.ThreadID,
			PersonaID:  schedule.PersonaID,
		}); err != nil {
			h.logger.Error().Err(err).Str("schedule_id", schedule.ID).Msg("enqueue agent reply")
		}
	}
	return map[string]int{"queued": len(due)}, nil
}

// handleForumAgentReply generates one persona reply. With a schedule it
// also advances the backoff; without one (direct reply under a user's
// message) it only posts.
func (h *Handler) handleForumAgentReply(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[ForumAgentReplyPayload](t)
	if f != nil {
		return nil, f
	}

	var schedule *domain.ForumAgentSchedule
	if payload.ScheduleID != "" {
		var err error
		schedule, err = h.forum.GetSchedule(ctx, payload.ScheduleID)
		if err != nil {
			return nil, fail(classify(err), fmt.Errorf("load schedule: %w", err))
		}
		if !schedule.IsActive {
			return map[string]bool{"skipped": true}, nil
		}
	}

	persona, err := h.forum.GetPersona(ctx, payload.PersonaID)
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("load persona: %w", err))
	}
	if !persona.IsActive {
		if schedule != nil {
			if err := h.forum.DeactivateSchedule(ctx, schedule.ID); err != nil {
				h.logger.Warn().Err(err).Str("schedule_id", schedule.ID).Msg("deactivate schedule")
			}
		}
		return map[string]bool{"skipped": true}, nil
	}

	thread, err := h.forum.GetThread(ctx, payload.ThreadID)
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("load thread: %w", err))
	}

	replyID, err := uuid.NewV7()
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	reply := &domain.ForumReply{
		ID:        replyID.String(),
		ThreadID:  thread.ID,
		PersonaID: persona.ID,
		ParentID:  payload.ParentID,
		Status:    domain.ReplyPending,
	}
	if err := h.forum.CreateReply(ctx, reply); err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	if err := h.forum.SetReplyStatus(ctx, reply.ID, domain.ReplyProcessing); err != nil {
		return nil, fail(classify(err), err)
	}

	recent, err := h.forum.ListRecentCompletedReplies(ctx, thread.ID, 10, reply.ID)
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}

	systemPrompt := llm.BuildForumAgentPrompt(*persona, *thread, recent)
	content, err := h.llm.TextPlain(ctx, []llm.Message{{Role: "user", Content: "Write your reply now."}}, systemPrompt, nil)
	if err != nil {
		h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_fail": 1})
		// Each attempt creates its own reply row, so this one is settled
		// here; a broker retry starts over with a fresh row.
		if ferr := h.forum.FinishReply(ctx, reply.ID, "Error generating response", domain.ReplyFailed); ferr != nil {
			h.logger.Warn().Err(ferr).Str("reply_id", reply.ID).Msg("mark reply failed")
		}
		return nil, fail(classifyLLM(err), err)
	}
	h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_success": 1})

	if err := h.forum.FinishReply(ctx, reply.ID, content, domain.ReplyCompleted); err != nil {
		return nil, fail(classify(err), err)
	}

	now := time.Now().UTC()
	if schedule != nil {
		nextCount := schedule.ReplyCount + 1
		nextAt := now.Add(domain.NextAgentReplyDelay(nextCount))
		if err := h.forum.AdvanceSchedule(ctx, schedule.ID, nextCount, nextAt, now); err != nil {
			h.logger.Warn().Err(err).Str("schedule_id", schedule.ID).Msg("advance schedule")
		}
	}
	if err := h.forum.TouchThread(ctx, thread.ID, now); err != nil {
		h.logger.Warn().Err(err).Str("thread_id", thread.ID).Msg("touch thread")
	}

	return map[string]string{
		"reply_id":     reply.ID,
		"persona_name": persona.Name,
	}, nil
}

// handleForumBump pulls active schedules forward after a human reply so
// personas answer within a minute or two instead of their normal backoff.
func (h *Handler) handleForumBump(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[ForumBumpPayload](t)
	if f != nil {
		return nil, f
	}
	notAfter := time.Now().UTC().Add(90 * time.Second)
	if err := h.forum.BumpSchedules(ctx, payload.ThreadID, notAfter); err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	return map[string]bool{"bumped": true}, nil
}
