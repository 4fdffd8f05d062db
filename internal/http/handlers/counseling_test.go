package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func TestCounselingSessionCreateRequiresPremium(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["free"] = &domain.User{ID: "free"}

	handler := env.app.RequirePremium(http.HandlerFunc(env.app.CounselingSessionCreate))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, asUser(jsonRequest(t, "POST", "/api/counseling/sessions", map[string]string{}), "free"))

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rr.Code)
	}
	if len(env.counseling.sessions) != 0 {
		t.Fatal("free account must not create a counseling session")
	}
}

func TestCounselingMessageCreateEnqueuesReply(t *testing.T) {
	env := newTestEnv(t)
	env.counseling.sessions["s1"] = &domain.CounselingSession{ID: "s1", UserID: "u1"}

	req := asUser(jsonRequest(t, "POST", "/api/counseling/sessions/s1/messages", map[string]string{
		"content": "I found three hairs on my pillow this morning",
	}), "u1")
	req = withURLParams(req, "id", "s1")
	rr := httptest.NewRecorder()
	env.app.CounselingMessageCreate(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	userMsg, _ := env.counseling.messages[payload["user_message_id"].(string)]
	assistantMsg, _ := env.counseling.messages[payload["assistant_message_id"].(string)]
	if userMsg == nil || assistantMsg == nil {
		t.Fatalf("messages not persisted: %v", payload)
	}
	if userMsg.Status != domain.ReplyCompleted || userMsg.Role != domain.RoleUser {
		t.Fatalf("user message = %+v", userMsg)
	}
	if assistantMsg.Status != domain.ReplyPending || assistantMsg.Role != domain.RoleAssistant {
		t.Fatalf("assistant message = %+v", assistantMsg)
	}
	if len(env.queue.submitted) != 1 || env.queue.submitted[0] != domain.TaskKindCounselingReply {
		t.Fatalf("submitted = %v", env.queue.submitted)
	}
}

func TestCounselingMessageCreateRejectsBlankContent(t *testing.T) {
	env := newTestEnv(t)
	env.counseling.sessions["s1"] = &domain.CounselingSession{ID: "s1", UserID: "u1"}

	req := asUser(jsonRequest(t, "POST", "/api/counseling/sessions/s1/messages", map[string]string{
		"content": "   ",
	}), "u1")
	req = withURLParams(req, "id", "s1")
	rr := httptest.NewRecorder()
	env.app.CounselingMessageCreate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCounselingSessionScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	env.counseling.sessions["s1"] = &domain.CounselingSession{ID: "s1", UserID: "owner"}

	req := asUser(httptest.NewRequest("DELETE", "/api/counseling/sessions/s1", nil), "intruder")
	req = withURLParams(req, "id", "s1")
	rr := httptest.NewRecorder()
	env.app.CounselingSessionDelete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if _, ok := env.counseling.sessions["s1"]; !ok {
		t.Fatal("session should survive a foreign delete")
	}
}

func TestCounselingSessionCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1", IsPremium: true}

	rr := httptest.NewRecorder()
	env.app.CounselingSessionCreate(rr, asUser(jsonRequest(t, "POST", "/api/counseling/sessions", nil), "u1"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	env.app.CounselingSessionsList(rr, asUser(httptest.NewRequest("GET", "/api/counseling/sessions", nil), "u1"))
	payload := decodeBody(t, rr)
	items, _ := payload["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", payload["items"])
	}
}
