package domain

import "time"

// GameScore is one finished round of the 2048 minigame.
type GameScore struct {
	ID          string
	UserID      string
	Score       int
	HighestTile int
	IsWin       bool
	CreatedAt   time.Time

	// Derived for leaderboard rows.
	PlayerName   string
	PlayerAvatar string
}
