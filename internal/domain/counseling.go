package domain

import (
	"strings"
	"time"
)

// MessageRole identifies the sender of a counseling message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// CounselingSession is one chat between a user and the counselor persona.
type CounselingSession struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []CounselingMessage
}

// SuggestTitle derives a session title from the first user message.
func (s CounselingSession) SuggestTitle() string {
	for _, m := range s.Messages {
		if m.Role == RoleUser && m.Content != "" {
			return TruncateWords(m.Content, 5)
		}
	}
	return ""
}

// TruncateWords keeps at most n leading words, appending an ellipsis when
// the input was longer.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

// CounselingMessage is one turn in a session. Content is empty while an
// assistant turn is still being generated.
type CounselingMessage struct {
	ID        string
	SessionID string
	Role      MessageRole
	Content   string
	Status    ReplyStatus
	CreatedAt time.Time
}
