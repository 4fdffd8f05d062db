package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
)

type googleVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type googleVerifyResponse struct {
	Token string         `json:"token"`
	User  userProfileDTO `json:"user"`
}

type userProfileDTO struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
	AvatarURL             string `json:"avatar_url"`
	Country               string `json:"country"`
	IsPremium             bool   `json:"is_premium"`
	IsAdmin               bool   `json:"is_admin"`
	FreeAnalysesRemaining int    `json:"free_analyses_remaining"`
	ShowOnLeaderboard     bool   `json:"show_on_leaderboard"`
}

func profileDTO(u *domain.User) userProfileDTO {
	return userProfileDTO{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		AvatarURL:             u.AvatarURL,
		Country:               u.Country,
		IsPremium:             u.IsPremium,
		IsAdmin:               u.IsAdmin,
		FreeAnalysesRemaining: u.FreeAnalysesRemaining,
		ShowOnLeaderboard:     u.ShowOnLeaderboard,
	}
}

func (a *App) AuthGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	claims, err := a.Verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google verify failed")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid google token")
		return
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	locale, _ := claims["locale"].(string)
	if sub == "" || email == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "incomplete google token")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	user, err := a.Users.UpsertByGoogleSub(r.Context(), &domain.User{
		ID:        id.String(),
		GoogleSub: sub,
		Email:     email,
		Name:      name,
		AvatarURL: picture,
		Locale:    locale,
		Country:   middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("upsert user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist user")
		return
	}

	token, err := middleware.SignSession(a.Cfg.JWTSecret, user.ID, user.IsPremium, user.IsAdmin, a.Cfg.JWTExpiry)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}

	a.countVisitor(r.Context())

	a.json(w, http.StatusOK, googleVerifyResponse{Token: token, User: profileDTO(user)})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	a.json(w, http.StatusOK, profileDTO(user))
}

type leaderboardVisibilityRequest struct {
	Visible bool `json:"visible"`
}

// MeLeaderboardVisibility toggles whether the user appears on public
// rankings.
func (a *App) MeLeaderboardVisibility(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req leaderboardVisibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Users.SetLeaderboardVisibility(r.Context(), userID, req.Visible); err != nil {
		a.domainError(w, err, "user not found")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"show_on_leaderboard": req.Visible})
}
