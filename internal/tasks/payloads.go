package tasks

import "server/internal/domain"

// AnalyzeImagePayload carries a single-photo analysis job.
type AnalyzeImagePayload struct {
	UserID      string `json:"user_id"`
	ImageBase64 string `json:"image_base64"`
	MediaType   string `json:"media_type"`
}

// ValidatePhotoPayload carries a certification photo validation job.
type ValidatePhotoPayload struct {
	CertificationID string           `json:"certification_id"`
	PhotoID         string           `json:"photo_id"`
	Slot            domain.PhotoSlot `json:"slot"`
}

// DiagnosePayload carries a three-photo certification diagnosis job.
type DiagnosePayload struct {
	CertificationID string `json:"certification_id"`
	UserID          string `json:"user_id"`
}

// CounselingReplyPayload carries an assistant turn generation job.
type CounselingReplyPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

// ForumInitPayload seeds persona schedules for a fresh thread.
type ForumInitPayload struct {
	ThreadID string `json:"thread_id"`
}

// ForumAgentReplyPayload carries one persona reply generation job.
type ForumAgentReplyPayload struct {
	ScheduleID string `json:"schedule_id"`
	ThreadID   string `json:"thread_id"`
	PersonaID  string `json:"persona_id"`
	ParentID   string `json:"parent_id,omitempty"`
}

// ForumBumpPayload pulls persona schedules forward after a human reply.
type ForumBumpPayload struct {
	ThreadID string `json:"thread_id"`
}
