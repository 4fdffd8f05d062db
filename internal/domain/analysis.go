package domain

import "time"

// Confidence buckets reported by the single-photo analysis.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Analysis is one completed Norwood classification of a single photo.
type Analysis struct {
	ID           string
	UserID       string
	ImageKey     string
	NorwoodStage int
	Confidence   string
	Title        string
	Description  string
	AnalysisText string
	Reasoning    string
	CreatedAt    time.Time
}
