package domain

import "time"

// User represents an authenticated account within the platform.
type User struct {
	ID                    string
	GoogleSub             string
	Email                 string
	Name                  string
	AvatarURL             string
	Locale                string
	Country               string
	IsPremium             bool
	IsAdmin               bool
	FreeAnalysesRemaining int
	ShowOnLeaderboard     bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CanAnalyze reports whether the user may submit another analysis.
// Premium and admin accounts are unlimited; free accounts burn a counter.
func (u User) CanAnalyze() bool {
	return u.IsAdmin || u.IsPremium || u.FreeAnalysesRemaining > 0
}

// HasPremiumAccess gates the paid features (certification, leaderboard,
// counseling). Admin accounts pass regardless of payment state.
func (u User) HasPremiumAccess() bool {
	return u.IsPremium || u.IsAdmin
}

// DisplayName returns the name shown on public surfaces.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return "Anonymous"
}
