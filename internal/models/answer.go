package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ErrAnswerTransition indicates an answer event is not defined for the
// answer's current state.
var ErrAnswerTransition = errors.New("answer transition not allowed")

// Answer is one response to one question within a submission. Answers are
// append-only per question: resaving a response creates a new record and the
// superseded one is kept as history.
type Answer struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SubmissionID uint            `gorm:"index;not null" json:"submission_id"`
	QuestionID   uint            `gorm:"index;not null" json:"question_id"`
	State        SubmissionState `gorm:"size:32;not null;default:attempting" json:"state"`
	Payload      datatypes.JSON  `gorm:"type:json" json:"payload"`
	Grade        *float64        `json:"grade"`
	GraderID     *uint           `json:"grader_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	SubmittedAt  *time.Time      `json:"submitted_at"`
	GradedAt     *time.Time      `json:"graded_at"`
}

// Transition applies a lifecycle event to the answer. With force set the
// state guard is bypassed; the cascade uses this to revert answers during
// unsubmit regardless of their current state.
func (a *Answer) Transition(event SubmissionEvent, force bool, at time.Time) error {
	next, ok := NextState(a.State, event)
	if !ok {
		if !force {
			return ErrAnswerTransition
		}
		next, ok = forcedTarget(event)
		if !ok {
			return ErrAnswerTransition
		}
	}

	a.State = next
	switch next {
	case StateSubmitted:
		stamp := at
		a.SubmittedAt = &stamp
	case StateGraded:
		stamp := at
		a.GradedAt = &stamp
	case StateAttempting:
		a.SubmittedAt = nil
		a.GradedAt = nil
		a.Grade = nil
		a.GraderID = nil
	}

	return nil
}

// forcedTarget resolves the destination state for an event independent of
// the current state. Every event has exactly one destination.
func forcedTarget(event SubmissionEvent) (SubmissionState, bool) {
	switch event {
	case EventFinalise:
		return StateSubmitted, true
	case EventPublish:
		return StateGraded, true
	case EventUnsubmit:
		return StateAttempting, true
	default:
		return "", false
	}
}
