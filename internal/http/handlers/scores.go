package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

type scoreRequest struct {
	Score       int  `json:"score" validate:"required,min=1"`
	HighestTile int  `json:"highest_tile" validate:"required,min=2"`
	IsWin       bool `json:"is_win"`
}

type scoreDTO struct {
	ID          string    `json:"id"`
	Score       int       `json:"score"`
	HighestTile int       `json:"highest_tile"`
	IsWin       bool      `json:"is_win"`
	PlayerName  string    `json:"player_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func scoreDTOFrom(s domain.GameScore) scoreDTO {
	return scoreDTO{
		ID:          s.ID,
		Score:       s.Score,
		HighestTile: s.HighestTile,
		IsWin:       s.IsWin,
		PlayerName:  s.PlayerName,
		CreatedAt:   s.CreatedAt,
	}
}

func (a *App) ScoreSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "score and highest_tile must be positive")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	score := &domain.GameScore{
		ID:          id.String(),
		UserID:      userID,
		Score:       req.Score,
		HighestTile: req.HighestTile,
		IsWin:       req.IsWin,
	}
	if err := a.Scores.Create(r.Context(), score); err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusCreated, scoreDTOFrom(*score))
}

// ScoreBest returns the user's personal best, or null when they have
// never played.
func (a *App) ScoreBest(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	best, err := a.Scores.BestByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"best": nil})
			return
		}
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"best": scoreDTOFrom(*best)})
}

func (a *App) ScoresLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := a.Scores.Top(r.Context(), leaderboardLimit)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]scoreDTO, 0, len(top))
	for _, s := range top {
		items = append(items, scoreDTOFrom(s))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
