package domain

import "time"

// TaskKind names an asynchronous unit of work carried by the queue.
type TaskKind string

const (
	TaskKindAnalyzeImage     TaskKind = "analysis:analyze_image"
	TaskKindValidatePhoto    TaskKind = "certification:validate_photo"
	TaskKindDiagnose         TaskKind = "certification:diagnose"
	TaskKindCounselingReply  TaskKind = "counseling:generate_reply"
	TaskKindForumInitAgents  TaskKind = "forum:init_agent_schedules"
	TaskKindForumAgentReply  TaskKind = "forum:generate_agent_reply"
	TaskKindForumSweep       TaskKind = "forum:check_schedules"
	TaskKindForumBumpOnReply TaskKind = "forum:bump_schedules"
)

// TaskStatus enumerates the job lifecycle states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskRun is the durable record of one queued task. The row is created at
// submission time, mutated exactly once into a terminal state by the worker
// that executes it, and read any number of times by pollers.
type TaskRun struct {
	ID        string
	Kind      TaskKind
	UserID    string
	Status    TaskStatus
	Result    []byte
	ErrorKind TaskErrorKind
	Error     string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ready mirrors the polling contract: the client may stop polling once the
// run has reached a terminal state.
func (t TaskRun) Ready() bool {
	return t.Status.Terminal()
}
