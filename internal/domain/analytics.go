package domain

import "time"

// AnalyticsDaily stores aggregated usage counters for a specific day.
type AnalyticsDaily struct {
	Day                     time.Time
	Visitors                int
	AIRequests              int
	RequestSuccess          int
	RequestFail             int
	AnalysesCompleted       int
	CertificationsCompleted int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// LeaderboardEntry is one row of the premium Norwood rankings.
type LeaderboardEntry struct {
	Username     string
	AvatarURL    string
	Country      string
	NorwoodStage int
	Score        int
}
