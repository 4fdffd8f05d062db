package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/tasks"
)

type forumThreadDTO struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	IsPinned       bool            `json:"is_pinned"`
	AuthorName     string          `json:"author_name"`
	AuthorAvatar   string          `json:"author_avatar,omitempty"`
	ReplyCount     int             `json:"reply_count"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	CreatedAt      time.Time       `json:"created_at"`
	Replies        []forumReplyDTO `json:"replies,omitempty"`
}

type forumReplyDTO struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	IsAgent    bool      `json:"is_agent"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func forumThreadDTOFrom(t domain.ForumThread) forumThreadDTO {
	return forumThreadDTO{
		ID:             t.ID,
		Title:          t.Title,
		Content:        t.Content,
		IsPinned:       t.IsPinned,
		AuthorName:     t.AuthorName,
		AuthorAvatar:   t.AuthorAvatar,
		ReplyCount:     t.ReplyCount,
		LastActivityAt: t.LastActivityAt,
		CreatedAt:      t.CreatedAt,
	}
}

func forumReplyDTOFrom(reply domain.ForumReply) forumReplyDTO {
	return forumReplyDTO{
		ID:         reply.ID,
		ThreadID:   reply.ThreadID,
		ParentID:   reply.ParentID,
		Content:    reply.Content,
		Status:     string(reply.Status),
		IsAgent:    reply.IsAgent(),
		AuthorName: reply.DisplayAuthor(),
		CreatedAt:  reply.CreatedAt,
	}
}

func (a *App) ForumThreadsList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	const pageSize = 20
	threads, total, err := a.Forum.ListThreads(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]forumThreadDTO, 0, len(threads))
	for _, t := range threads {
		items = append(items, forumThreadDTOFrom(t))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
	})
}

type forumThreadRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// ForumThreadCreate posts a thread and schedules the persona welcome
// wave in the background.
func (a *App) ForumThreadCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req forumThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "title and content are required")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	thread := &domain.ForumThread{
		ID:      id.String(),
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := a.Forum.CreateThread(r.Context(), thread); err != nil {
		a.domainError(w, err, "")
		return
	}

	if err := a.Tasks.Fire(r.Context(), domain.TaskKindForumInitAgents, tasks.ForumInitPayload{ThreadID: thread.ID}); err != nil {
		a.Logger.Error().Err(err).Str("thread_id", thread.ID).Msg("enqueue forum init")
	}
	a.json(w, http.StatusCreated, forumThreadDTOFrom(*thread))
}

func (a *App) ForumThreadGet(w http.ResponseWriter, r *http.Request) {
	thread, err := a.Forum.GetThread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err, "thread not found")
		return
	}
	replies, err := a.Forum.ListReplies(r.Context(), thread.ID)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	dto := forumThreadDTOFrom(*thread)
	dto.Replies = make([]forumReplyDTO, 0, len(replies))
	for _, reply := range replies {
		dto.Replies = append(dto.Replies, forumReplyDTOFrom(reply))
	}
	a.json(w, http.StatusOK, dto)
}

type forumReplyRequest struct {
	Content  string `json:"content" validate:"required"`
	ParentID string `json:"parent_id"`
}

// ForumReplyCreate posts a user reply. It nudges the thread's persona
// schedules closer, and replying directly to a persona triggers a nested
// persona answer.
func (a *App) ForumReplyCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	thread, err := a.Forum.GetThread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err, "thread not found")
		return
	}

	var req forumReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "content required")
		return
	}

	var parent *domain.ForumReply
	if req.ParentID != "" {
		parent, err = a.Forum.GetReply(r.Context(), req.ParentID)
		if err != nil || parent.ThreadID != thread.ID {
			a.error(w, http.StatusBadRequest, "bad_request", "parent reply not found in thread")
			return
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	reply := &domain.ForumReply{
		ID:       id.String(),
		ThreadID: thread.ID,
		UserID:   userID,
		ParentID: req.ParentID,
		Content:  req.Content,
		Status:   domain.ReplyCompleted,
	}
	if err := a.Forum.CreateReply(r.Context(), reply); err != nil {
		a.domainError(w, err, "")
		return
	}
	if err := a.Forum.TouchThread(r.Context(), thread.ID, time.Now().UTC()); err != nil {
		a.Logger.Warn().Err(err).Str("thread_id", thread.ID).Msg("touch thread")
	}

	// Activity pulls waiting personas in sooner.
	if err := a.Tasks.Fire(r.Context(), domain.TaskKindForumBumpOnReply, tasks.ForumBumpPayload{ThreadID: thread.ID}); err != nil {
		a.Logger.Warn().Err(err).Str("thread_id", thread.ID).Msg("enqueue schedule bump")
	}

	// Replying to a persona gets a direct answer outside its schedule.
	if parent != nil && parent.IsAgent() {
		if err := a.Tasks.Fire(r.Context(), domain.TaskKindForumAgentReply, tasks.ForumAgentReplyPayload{
			ThreadID:  thread.ID,
			PersonaID: parent.PersonaID,
			ParentID:  reply.ID,
		}); err != nil {
			a.Logger.Warn().Err(err).Str("thread_id", thread.ID).Msg("enqueue direct agent reply")
		}
	}

	a.json(w, http.StatusCreated, forumReplyDTOFrom(*reply))
}

// ForumReplyStatus lets clients poll a pending persona reply.
func (a *App) ForumReplyStatus(w http.ResponseWriter, r *http.Request) {
	reply, err := a.Forum.GetReply(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "reply not found")
			return
		}
		a.domainError(w, err, "reply not found")
		return
	}
	a.json(w, http.StatusOK, forumReplyDTOFrom(*reply))
}
