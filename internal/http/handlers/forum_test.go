package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
	"server/internal/tasks"
)

func TestForumThreadCreateFiresPersonaInit(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(jsonRequest(t, "POST", "/api/forum/threads", map[string]string{
		"title":   "Is this a mature hairline?",
		"content": "Photos in profile. Be honest.",
	}), "u1")
	rr := httptest.NewRecorder()
	env.app.ForumThreadCreate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	if len(env.forum.threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(env.forum.threads))
	}
	if len(env.queue.fired) != 1 || env.queue.fired[0] != domain.TaskKindForumInitAgents {
		t.Fatalf("fired = %v, want persona init", env.queue.fired)
	}
}

func TestForumThreadCreateRejectsLongTitle(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(jsonRequest(t, "POST", "/api/forum/threads", map[string]string{
		"title":   strings.Repeat("a", 201),
		"content": "body",
	}), "u1")
	rr := httptest.NewRecorder()
	env.app.ForumThreadCreate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func postReply(t *testing.T, env *testEnv, userID, threadID string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := asUser(jsonRequest(t, "POST", "/api/forum/threads/"+threadID+"/replies", body), userID)
	req = withURLParams(req, "id", threadID)
	rr := httptest.NewRecorder()
	env.app.ForumReplyCreate(rr, req)
	return rr
}

func TestForumReplyBumpsSchedules(t *testing.T) {
	env := newTestEnv(t)
	env.forum.threads["th1"] = &domain.ForumThread{ID: "th1", UserID: "op"}

	rr := postReply(t, env, "u1", "th1", map[string]string{"content": "same boat brother"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	if len(env.queue.fired) != 1 || env.queue.fired[0] != domain.TaskKindForumBumpOnReply {
		t.Fatalf("fired = %v, want only the schedule bump", env.queue.fired)
	}
	if len(env.forum.touched) != 1 {
		t.Fatalf("thread not touched: %v", env.forum.touched)
	}
}

func TestForumReplyToPersonaFiresDirectAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.forum.threads["th1"] = &domain.ForumThread{ID: "th1", UserID: "op"}
	env.forum.replies["agent-reply"] = &domain.ForumReply{
		ID:        "agent-reply",
		ThreadID:  "th1",
		PersonaID: "persona-1",
		Status:    domain.ReplyCompleted,
	}

	rr := postReply(t, env, "u1", "th1", map[string]string{
		"content":   "doc, how long do I have?",
		"parent_id": "agent-reply",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	if len(env.queue.fired) != 2 || env.queue.fired[1] != domain.TaskKindForumAgentReply {
		t.Fatalf("fired = %v, want bump then direct agent reply", env.queue.fired)
	}
	payload, ok := env.queue.payloads[len(env.queue.payloads)-1].(tasks.ForumAgentReplyPayload)
	if !ok {
		t.Fatalf("last payload = %T", env.queue.payloads[len(env.queue.payloads)-1])
	}
	if payload.PersonaID != "persona-1" {
		t.Fatalf("persona id = %q", payload.PersonaID)
	}
	reply := decodeBody(t, rr)
	if payload.ParentID != reply["id"] {
		t.Fatalf("agent parent = %q, want the new reply %v", payload.ParentID, reply["id"])
	}
	if payload.ScheduleID != "" {
		t.Fatalf("direct reply should not reference a schedule, got %q", payload.ScheduleID)
	}
}

func TestForumReplyRejectsForeignParent(t *testing.T) {
	env := newTestEnv(t)
	env.forum.threads["th1"] = &domain.ForumThread{ID: "th1"}
	env.forum.replies["other"] = &domain.ForumReply{ID: "other", ThreadID: "th2"}

	rr := postReply(t, env, "u1", "th1", map[string]string{
		"content":   "hi",
		"parent_id": "other",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestForumThreadGetIncludesReplies(t *testing.T) {
	env := newTestEnv(t)
	env.forum.threads["th1"] = &domain.ForumThread{ID: "th1", Title: "topic"}
	env.forum.replies["r1"] = &domain.ForumReply{
		ID:          "r1",
		ThreadID:    "th1",
		PersonaID:   "persona-1",
		PersonaName: "Dr. Baldsworth",
		Content:     "clinically speaking",
		Status:      domain.ReplyCompleted,
	}

	req := withURLParams(httptest.NewRequest("GET", "/api/forum/threads/th1", nil), "id", "th1")
	rr := httptest.NewRecorder()
	env.app.ForumThreadGet(rr, req)

	payload := decodeBody(t, rr)
	replies, _ := payload["replies"].([]any)
	if len(replies) != 1 {
		t.Fatalf("replies = %v", payload["replies"])
	}
	reply := replies[0].(map[string]any)
	if reply["is_agent"] != true {
		t.Fatalf("is_agent = %v, want true", reply["is_agent"])
	}
	if reply["author_name"] != "Dr. Baldsworth" {
		t.Fatalf("author_name = %v", reply["author_name"])
	}
}
