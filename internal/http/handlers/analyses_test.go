package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

var testImageB64 = base64.StdEncoding.EncodeToString([]byte("not really a jpeg"))

func TestAnalyzeSubmitEnqueues(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1", FreeAnalysesRemaining: 2}

	req := asUser(jsonRequest(t, "POST", "/api/analyses", map[string]string{
		"image_base64": testImageB64,
		"media_type":   "image/jpeg",
	}), "u1")
	rr := httptest.NewRecorder()
	env.app.AnalyzeSubmit(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["task_id"] != "run-1" {
		t.Fatalf("task_id = %v", payload["task_id"])
	}
	if len(env.queue.submitted) != 1 || env.queue.submitted[0] != domain.TaskKindAnalyzeImage {
		t.Fatalf("submitted kinds = %v", env.queue.submitted)
	}
}

func TestAnalyzeSubmitRequiresQuota(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1", FreeAnalysesRemaining: 0}

	req := asUser(jsonRequest(t, "POST", "/api/analyses", map[string]string{
		"image_base64": testImageB64,
		"media_type":   "image/jpeg",
	}), "u1")
	rr := httptest.NewRecorder()
	env.app.AnalyzeSubmit(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rr.Code)
	}
	if len(env.queue.submitted) != 0 {
		t.Fatalf("nothing should be enqueued, got %v", env.queue.submitted)
	}
}

func TestAnalyzeSubmitRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"] = &domain.User{ID: "u1", IsPremium: true}

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad base64", map[string]string{"image_base64": "!!not-base64!!", "media_type": "image/jpeg"}},
		{"unsupported media type", map[string]string{"image_base64": testImageB64, "media_type": "image/gif"}},
		{"missing image", map[string]string{"media_type": "image/jpeg"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.app.AnalyzeSubmit(rr, asUser(jsonRequest(t, "POST", "/api/analyses", tc.body), "u1"))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestAnalysesListReturnsStorageURLs(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.analyses["a1"] = &domain.Analysis{
		ID:           "a1",
		UserID:       "u1",
		NorwoodStage: 4,
		ImageKey:     "analyses/u1/a1.jpg",
	}

	req := asUser(httptest.NewRequest("GET", "/api/analyses", nil), "u1")
	rr := httptest.NewRecorder()
	env.app.AnalysesList(rr, req)

	payload := decodeBody(t, rr)
	items, _ := payload["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", payload["items"])
	}
	item := items[0].(map[string]any)
	if item["image_url"] != "http://files.test/static/analyses/u1/a1.jpg" {
		t.Fatalf("image_url = %v", item["image_url"])
	}
}

func TestAnalysisDeleteRemovesStoredImage(t *testing.T) {
	env := newTestEnv(t)
	key, err := env.app.Store.Write(context.Background(), "analyses/u1/a1.jpg", []byte("img"))
	if err != nil {
		t.Fatalf("seed image: %v", err)
	}
	env.analyses.analyses["a1"] = &domain.Analysis{ID: "a1", UserID: "u1", ImageKey: key}

	req := asUser(httptest.NewRequest("DELETE", "/api/analyses/a1", nil), "u1")
	req = withURLParams(req, "id", "a1")
	rr := httptest.NewRecorder()
	env.app.AnalysisDelete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if _, ok := env.analyses.analyses["a1"]; ok {
		t.Fatal("analysis row not deleted")
	}
	if _, err := env.app.Store.Read(context.Background(), key); err == nil {
		t.Fatal("stored image should be gone")
	}
}

func TestAnalysisDeleteScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.analyses["a1"] = &domain.Analysis{ID: "a1", UserID: "owner"}

	req := asUser(httptest.NewRequest("DELETE", "/api/analyses/a1", nil), "intruder")
	req = withURLParams(req, "id", "a1")
	rr := httptest.NewRecorder()
	env.app.AnalysisDelete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
