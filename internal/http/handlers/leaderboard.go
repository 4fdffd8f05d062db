package handlers

import (
	"net/http"

	"server/internal/domain"
)

type leaderboardEntryDTO struct {
	Username     string `json:"username"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Country      string `json:"country,omitempty"`
	NorwoodStage int    `json:"norwood_stage,omitempty"`
	Score        int    `json:"score,omitempty"`
}

func leaderboardDTOs(entries []domain.LeaderboardEntry) []leaderboardEntryDTO {
	items := make([]leaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, leaderboardEntryDTO{
			Username:     e.Username,
			AvatarURL:    e.AvatarURL,
			Country:      e.Country,
			NorwoodStage: e.NorwoodStage,
			Score:        e.Score,
		})
	}
	return items
}

const leaderboardLimit = 25

// LeaderboardBest ranks users by lowest median Norwood stage.
func (a *App) LeaderboardBest(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Leaderboard.BestNorwood(r.Context(), leaderboardLimit)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": leaderboardDTOs(entries)})
}

// LeaderboardWorst ranks users by highest median Norwood stage.
func (a *App) LeaderboardWorst(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Leaderboard.WorstNorwood(r.Context(), leaderboardLimit)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": leaderboardDTOs(entries)})
}

// LeaderboardInsecurity ranks users by how much they use the product.
func (a *App) LeaderboardInsecurity(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Leaderboard.InsecurityIndex(r.Context(), leaderboardLimit)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": leaderboardDTOs(entries)})
}
