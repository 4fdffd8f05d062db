package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	UpsertByGoogleSub(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	DecrementFreeAnalyses(ctx context.Context, userID string) error
	SetPremium(ctx context.Context, userID string, premium bool) error
	SetFlagsByEmail(ctx context.Context, email string, premium, admin bool) error
	SetLeaderboardVisibility(ctx context.Context, userID string, visible bool) error
}

// TaskRunRepository persists the durable status row behind the polling
// protocol. Terminal statuses are immutable: the Mark methods are no-ops
// against completed or failed rows.
type TaskRunRepository interface {
	Create(ctx context.Context, run *TaskRun) error
	GetByID(ctx context.Context, id string) (*TaskRun, error)
	MarkStarted(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result []byte) error
	MarkFailed(ctx context.Context, id string, kind TaskErrorKind, msg string) error
}

// AnalysisRepository handles persistence for completed analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *Analysis) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Analysis, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]Analysis, error)
	GetForUser(ctx context.Context, id, userID string) (*Analysis, error)
	Delete(ctx context.Context, id, userID string) error
}

// CertificationRepository persists the certification workflow. Status
// transitions go through TransitionStatus, which enforces the forward-only
// state machine at the SQL level and returns ErrInvalidState when the row
// was not in the expected source state.
type CertificationRepository interface {
	Create(ctx context.Context, cert *Certification) error
	GetByID(ctx context.Context, id string) (*Certification, error)
	GetForUser(ctx context.Context, id, userID string) (*Certification, error)
	GetActiveByUser(ctx context.Context, userID string) (*Certification, error)
	LastCompleted(ctx context.Context, userID string) (*Certification, error)
	ListCompletedByUser(ctx context.Context, userID string) ([]Certification, error)
	GetPublic(ctx context.Context, id string) (*Certification, error)
	Delete(ctx context.Context, id, userID string) error
	TransitionStatus(ctx context.Context, id string, from, to CertificationStatus) error
	CompleteDiagnosis(ctx context.Context, cert *Certification) error

	CreatePhoto(ctx context.Context, photo *CertificationPhoto) error
	GetPhoto(ctx context.Context, id string) (*CertificationPhoto, error)
	GetPhotoBySlot(ctx context.Context, certID string, slot PhotoSlot) (*CertificationPhoto, error)
	DeletePhoto(ctx context.Context, id string) error
	SetPhotoImage(ctx context.Context, id, imageKey, mediaType string) error
	SetPhotoValidation(ctx context.Context, id string, status ValidationStatus, reason, notes string) error
}

// ForumRepository covers threads, replies, personas, and agent schedules.
type ForumRepository interface {
	CreateThread(ctx context.Context, thread *ForumThread) error
	GetThread(ctx context.Context, id string) (*ForumThread, error)
	ListThreads(ctx context.Context, offset, limit int) ([]ForumThread, int, error)
	TouchThread(ctx context.Context, id string, at time.Time) error

	CreateReply(ctx context.Context, reply *ForumReply) error
	GetReply(ctx context.Context, id string) (*ForumReply, error)
	ListReplies(ctx context.Context, threadID string) ([]ForumReply, error)
	ListRecentCompletedReplies(ctx context.Context, threadID string, limit int, excludeID string) ([]ForumReply, error)
	FinishReply(ctx context.Context, id, content string, status ReplyStatus) error
	SetReplyStatus(ctx context.Context, id string, status ReplyStatus) error

	ListActivePersonas(ctx context.Context) ([]ForumPersona, error)
	GetPersona(ctx context.Context, id string) (*ForumPersona, error)

	CreateSchedule(ctx context.Context, schedule *ForumAgentSchedule) error
	// ClaimDueSchedules atomically selects active schedules whose
	// next_reply_at has passed and pushes the due time forward so a
	// concurrent sweep does not pick them up again.
	ClaimDueSchedules(ctx context.Context, now time.Time, hold time.Duration) ([]ForumAgentSchedule, error)
	GetSchedule(ctx context.Context, id string) (*ForumAgentSchedule, error)
	AdvanceSchedule(ctx context.Context, id string, replyCount int, nextAt, repliedAt time.Time) error
	DeactivateSchedule(ctx context.Context, id string) error
	BumpSchedules(ctx context.Context, threadID string, notAfter time.Time) error
}

// CounselingRepository covers chat sessions and messages.
type CounselingRepository interface {
	CreateSession(ctx context.Context, session *CounselingSession) error
	GetSession(ctx context.Context, id, userID string) (*CounselingSession, error)
	ListSessions(ctx context.Context, userID string) ([]CounselingSession, error)
	DeleteSession(ctx context.Context, id, userID string) error
	SetSessionTitle(ctx context.Context, id, title string) error

	CreateMessage(ctx context.Context, msg *CounselingMessage) error
	GetMessage(ctx context.Context, id string) (*CounselingMessage, error)
	FinishMessage(ctx context.Context, id, content string, status ReplyStatus) error
	SetMessageStatus(ctx context.Context, id string, status ReplyStatus) error
}

// ScoreRepository persists 2048 minigame results.
type ScoreRepository interface {
	Create(ctx context.Context, score *GameScore) error
	BestByUser(ctx context.Context, userID string) (*GameScore, error)
	Top(ctx context.Context, limit int) ([]GameScore, error)
}

// PaymentRepository persists processor transactions.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByStripeID(ctx context.Context, stripeID string) (*Payment, error)
	HasSucceeded(ctx context.Context, userID string, kind PaymentKind) (bool, error)
	UpdateStatusByStripeID(ctx context.Context, stripeID string, status PaymentStatus) error
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
}

// LeaderboardRepository computes the premium ranking views.
type LeaderboardRepository interface {
	BestNorwood(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	WorstNorwood(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	InsecurityIndex(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// AnalyticsRepository updates daily metric counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}

// CredentialRepository stores third-party API keys so workers can run
// without the key in their environment.
type CredentialRepository interface {
	Token(ctx context.Context, provider string) (string, error)
	SetToken(ctx context.Context, provider, token string) error
}
