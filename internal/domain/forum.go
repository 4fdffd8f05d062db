package domain

import "time"

// ReplyStatus tracks generation state of a forum reply or counseling message.
type ReplyStatus string

const (
	ReplyPending    ReplyStatus = "pending"
	ReplyProcessing ReplyStatus = "processing"
	ReplyCompleted  ReplyStatus = "completed"
	ReplyFailed     ReplyStatus = "failed"
)

// ForumPersona is a simulated participant with its own voice.
type ForumPersona struct {
	ID           string
	Name         string
	SystemPrompt string
	IsActive     bool
	CreatedAt    time.Time
}

// ForumThread is one discussion started by a user.
type ForumThread struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	IsPinned  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Derived list fields.
	ReplyCount     int
	LastActivityAt time.Time
	AuthorName     string
	AuthorAvatar   string
}

// ForumReply is a post in a thread, authored by a user or a persona.
// Content is empty while a persona reply is still pending.
type ForumReply struct {
	ID          string
	ThreadID    string
	UserID      string
	PersonaID   string
	ParentID    string
	Content     string
	Status      ReplyStatus
	CreatedAt   time.Time
	AuthorName  string
	AuthorImage string
	PersonaName string
}

// IsAgent reports whether the reply was authored by a persona.
func (r ForumReply) IsAgent() bool {
	return r.PersonaID != ""
}

// DisplayAuthor returns the name shown next to the reply.
func (r ForumReply) DisplayAuthor() string {
	if r.PersonaName != "" {
		return r.PersonaName
	}
	if r.AuthorName != "" {
		return r.AuthorName
	}
	return "Anonymous"
}

// ForumAgentSchedule tracks when a persona next revisits a thread. One row
// per (thread, persona) pair, enforced by a unique constraint.
type ForumAgentSchedule struct {
	ID            string
	ThreadID      string
	PersonaID     string
	NextReplyAt   *time.Time
	ReplyCount    int
	LastRepliedAt *time.Time
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// agentReplyDelays is the coarse exponential backoff between persona replies,
// in minutes, indexed by how many replies the persona has already posted.
var agentReplyDelays = []int{2, 5, 15, 30, 60, 120, 240, 480, 1440}

// NextAgentReplyDelay returns the delay before a persona's next reply given
// its reply count so far. The delay grows to a daily cap.
func NextAgentReplyDelay(replyCount int) time.Duration {
	if replyCount < 0 {
		replyCount = 0
	}
	if replyCount >= len(agentReplyDelays) {
		replyCount = len(agentReplyDelays) - 1
	}
	return time.Duration(agentReplyDelays[replyCount]) * time.Minute
}
