package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/tasks"
)

type counselingSessionDTO struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Messages  []counselingMessageDTO `json:"messages,omitempty"`
}

type counselingMessageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func counselingSessionDTOFrom(s domain.CounselingSession, withMessages bool) counselingSessionDTO {
	dto := counselingSessionDTO{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if withMessages {
		dto.Messages = make([]counselingMessageDTO, 0, len(s.Messages))
		for _, m := range s.Messages {
			dto.Messages = append(dto.Messages, counselingMessageDTO{
				ID:        m.ID,
				Role:      string(m.Role),
				Content:   m.Content,
				Status:    string(m.Status),
				CreatedAt: m.CreatedAt,
			})
		}
	}
	return dto
}

func (a *App) CounselingSessionCreate(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	session := &domain.CounselingSession{ID: id.String(), UserID: user.ID}
	if err := a.Counseling.CreateSession(r.Context(), session); err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusCreated, counselingSessionDTOFrom(*session, false))
}

func (a *App) CounselingSessionsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	sessions, err := a.Counseling.ListSessions(r.Context(), userID)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]counselingSessionDTO, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, counselingSessionDTOFrom(s, false))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CounselingSessionGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	session, err := a.Counseling.GetSession(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "session not found")
		return
	}
	a.json(w, http.StatusOK, counselingSessionDTOFrom(*session, true))
}

func (a *App) CounselingSessionDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Counseling.DeleteSession(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		a.domainError(w, err, "session not found")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}

type counselingMessageRequest struct {
	Content string `json:"content"`
}

type counselingMessageResponse struct {
	UserMessageID      string `json:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id"`
	TaskID             string `json:"task_id"`
	Status             string `json:"status"`
}

// CounselingMessageCreate records the user's turn and enqueues the
// assistant reply. The client polls the returned task and then refetches
// the session.
func (a *App) CounselingMessageCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	session, err := a.Counseling.GetSession(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "session not found")
		return
	}

	var req counselingMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "content required")
		return
	}

	userMsgID, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	if err := a.Counseling.CreateMessage(r.Context(), &domain.CounselingMessage{
		ID:        userMsgID.String(),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   req.Content,
		Status:    domain.ReplyCompleted,
	}); err != nil {
		a.domainError(w, err, "")
		return
	}

	assistantMsgID, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	if err := a.Counseling.CreateMessage(r.Context(), &domain.CounselingMessage{
		ID:        assistantMsgID.String(),
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Status:    domain.ReplyPending,
	}); err != nil {
		a.domainError(w, err, "")
		return
	}

	run, err := a.Tasks.Submit(r.Context(), domain.TaskKindCounselingReply, userID, tasks.CounselingReplyPayload{
		SessionID: session.ID,
		UserID:    userID,
		MessageID: assistantMsgID.String(),
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("enqueue counseling reply")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue reply")
		return
	}
	a.json(w, http.StatusAccepted, counselingMessageResponse{
		UserMessageID:      userMsgID.String(),
		AssistantMessageID: assistantMsgID.String(),
		TaskID:             run.ID,
		Status:             string(run.Status),
	})
}
