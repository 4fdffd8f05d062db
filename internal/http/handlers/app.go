package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

// GoogleVerifier checks a Google ID token and returns its claims.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (map[string]any, error)
}

// TaskQueue is the producer side of the async protocol. Submit returns a
// pollable run; Fire enqueues internal work nobody polls.
type TaskQueue interface {
	Submit(ctx context.Context, kind domain.TaskKind, userID string, payload any) (*domain.TaskRun, error)
	Fire(ctx context.Context, kind domain.TaskKind, payload any) error
}

var validate = validator.New()

// App is the handler container. Everything is injected so tests can swap
// fakes in.
type App struct {
	Cfg      *infra.Config
	Logger   zerolog.Logger
	Verifier GoogleVerifier
	Store    *storage.FileStore
	Tasks    TaskQueue

	Users       domain.UserRepository
	Runs        domain.TaskRunRepository
	Analyses    domain.AnalysisRepository
	Certs       domain.CertificationRepository
	Forum       domain.ForumRepository
	Counseling  domain.CounselingRepository
	Scores      domain.ScoreRepository
	Payments    domain.PaymentRepository
	Leaderboard domain.LeaderboardRepository
	Analytics   domain.AnalyticsRepository
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// domainError maps repository sentinels onto the HTTP taxonomy.
func (a *App) domainError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", notFoundMsg)
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("internal error")
		a.error(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// currentUser loads the authenticated user or writes the error response
// and returns nil.
func (a *App) currentUser(w http.ResponseWriter, r *http.Request) *domain.User {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err, "user not found")
		return nil
	}
	return user
}

// RequirePremium gates paid features with 402 for free accounts.
func (a *App) RequirePremium(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := a.currentUser(w, r)
		if user == nil {
			return
		}
		if !user.HasPremiumAccess() {
			a.error(w, http.StatusPaymentRequired, "payment_required", "premium membership required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
