package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

type testEnv struct {
	app         *App
	queue       *fakeQueue
	verifier    *fakeVerifier
	users       *fakeUserRepo
	runs        *fakeRunRepo
	analyses    *fakeAnalysisRepo
	certs       *fakeCertRepo
	forum       *fakeForumRepo
	counseling  *fakeCounselingRepo
	scores      *fakeScoreRepo
	payments    *fakePaymentRepo
	leaderboard *fakeLeaderboardRepo
	analytics   *fakeAnalyticsRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	env := &testEnv{
		queue:       &fakeQueue{},
		verifier:    &fakeVerifier{},
		users:       newFakeUserRepo(),
		runs:        newFakeRunRepo(),
		analyses:    newFakeAnalysisRepo(),
		certs:       newFakeCertRepo(),
		forum:       newFakeForumRepo(),
		counseling:  newFakeCounselingRepo(),
		scores:      &fakeScoreRepo{},
		payments:    newFakePaymentRepo(),
		leaderboard: &fakeLeaderboardRepo{},
		analytics:   &fakeAnalyticsRepo{},
	}
	env.app = &App{
		Cfg: &infra.Config{
			JWTSecret:           "test-secret",
			JWTExpiry:           time.Hour,
			StorageBaseURL:      "http://files.test/static",
			FrontendURL:         "http://app.test",
			StripeWebhookSecret: "whsec_test",
			MaxImageSizeMB:      1,
		},
		Logger:      zerolog.Nop(),
		Verifier:    env.verifier,
		Store:       store,
		Tasks:       env.queue,
		Users:       env.users,
		Runs:        env.runs,
		Analyses:    env.analyses,
		Certs:       env.certs,
		Forum:       env.forum,
		Counseling:  env.counseling,
		Scores:      env.scores,
		Payments:    env.payments,
		Leaderboard: env.leaderboard,
		Analytics:   env.analytics,
	}
	return env
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func withURLParams(req *http.Request, pairs ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		rctx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	payload := decodeBody(t, rr)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error envelope: %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}
