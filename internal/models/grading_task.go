package models

import "time"

// Grading task statuses. A task is written as part of the transition
// transaction (pending), flushed to the broker after commit (dispatched),
// and resolved by a worker (completed or failed).
const (
	GradingTaskStatusPending    = "pending"
	GradingTaskStatusDispatched = "dispatched"
	GradingTaskStatusCompleted  = "completed"
	GradingTaskStatusFailed     = "failed"
)

// GradingTask is the outbox row recording the intent to auto-grade a
// submission. Handle is the opaque reference returned to callers; workers
// re-read submission state at execution time rather than trusting anything
// captured here.
type GradingTask struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Handle       string     `gorm:"size:64;uniqueIndex;not null" json:"handle"`
	SubmissionID uint       `gorm:"index;not null" json:"submission_id"`
	Status       string     `gorm:"size:32;not null;default:pending" json:"status"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DispatchedAt *time.Time `json:"dispatched_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}
