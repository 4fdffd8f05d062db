package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/llm"
)

// CounselingReplyResult is the poll payload for a generated assistant turn.
type CounselingReplyResult struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (h *Handler) handleCounselingReply(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[CounselingReplyPayload](t)
	if f != nil {
		return nil, f
	}

	msg, err := h.counseling.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("load message: %w", err))
	}
	if err := h.counseling.SetMessageStatus(ctx, msg.ID, domain.ReplyProcessing); err != nil {
		return nil, fail(classify(err), err)
	}

	session, err := h.counseling.GetSession(ctx, payload.SessionID, payload.UserID)
	if err != nil {
		h.finishFailed(ctx, msg.ID, "Session not found")
		return nil, fail(classify(err), fmt.Errorf("load session: %w", err))
	}

	// Conversation so far, excluding the pending assistant turn.
	var history []llm.Message
	for _, m := range session.Messages {
		if m.Status == domain.ReplyCompleted && m.Content != "" {
			history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
		}
	}

	analyses, err := h.analyses.ListRecentByUser(ctx, payload.UserID, 10)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("load analysis history")
	}
	systemPrompt := llm.BuildCounselingPrompt(analyses)

	content, err := h.llm.TextPlain(ctx, history, systemPrompt, nil)
	if err != nil {
		h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_fail": 1})
		kind := classifyLLM(err)
		if !kind.Retryable() || exhausted(ctx) {
			h.finishFailed(ctx, msg.ID, "Error generating response")
		}
		return nil, fail(kind, err)
	}
	h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_success": 1})

	if err := h.counseling.FinishMessage(ctx, msg.ID, content, domain.ReplyCompleted); err != nil {
		return nil, fail(classify(err), err)
	}

	if session.Title == "" {
		if title := session.SuggestTitle(); title != "" {
			if err := h.counseling.SetSessionTitle(ctx, session.ID, title); err != nil {
				h.logger.Warn().Err(err).Str("session_id", session.ID).Msg("set session title")
			}
		}
	}

	return CounselingReplyResult{
		MessageID: msg.ID,
		SessionID: session.ID,
		Content:   content,
	}, nil
}

func (h *Handler) finishFailed(ctx context.Context, messageID, placeholder string) {
	if err := h.counseling.FinishMessage(ctx, messageID, placeholder, domain.ReplyFailed); err != nil {
		h.logger.Warn().Err(err).Str("message_id", messageID).Msg("mark message failed")
	}
}
