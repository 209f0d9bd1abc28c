package models

import (
	"time"

	"gorm.io/gorm"
)

// SubmissionState enumerates the lifecycle states shared by submissions and
// their answers.
type SubmissionState string

const (
	// StateAttempting is the initial, editable state.
	StateAttempting SubmissionState = "attempting"
	// StateSubmitted means the attempt has been handed in for grading.
	StateSubmitted SubmissionState = "submitted"
	// StateGraded means grades have been published to the learner.
	StateGraded SubmissionState = "graded"
)

// SubmissionEvent names a lifecycle transition request.
type SubmissionEvent string

const (
	// EventFinalise hands an attempt in for grading.
	EventFinalise SubmissionEvent = "finalise"
	// EventPublish releases grades to the learner.
	EventPublish SubmissionEvent = "publish"
	// EventUnsubmit reverts a handed-in attempt back to editing.
	EventUnsubmit SubmissionEvent = "unsubmit"
)

// submissionTransitions maps (event, current state) to the resulting state.
var submissionTransitions = map[SubmissionEvent]map[SubmissionState]SubmissionState{
	EventFinalise: {
		StateAttempting: StateSubmitted,
	},
	EventPublish: {
		StateSubmitted: StateGraded,
	},
	EventUnsubmit: {
		StateSubmitted: StateAttempting,
		StateGraded:    StateAttempting,
	},
}

// NextState resolves the target state for an event applied to the given
// state. The second return value is false when the transition is undefined.
func NextState(state SubmissionState, event SubmissionEvent) (SubmissionState, bool) {
	targets, ok := submissionTransitions[event]
	if !ok {
		return state, false
	}
	next, ok := targets[state]
	return next, ok
}

// Submission is one learner's attempt at an assessment. Answers are
// append-only history; the current answer per question is derived, never
// stored.
type Submission struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AssessmentID  uint            `gorm:"index:idx_submissions_assessment_creator;not null" json:"assessment_id"`
	CreatorID     uint            `gorm:"index:idx_submissions_assessment_creator;not null" json:"creator_id"`
	State         SubmissionState `gorm:"size:32;not null;default:attempting" json:"state"`
	PointsAwarded *int            `json:"points_awarded"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
	Assessment    Assessment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessment"`
	Answers       []Answer        `gorm:"constraint:OnDelete:CASCADE" json:"answers"`
}

// CanTransition reports whether the event is defined for the submission's
// current state.
func (s Submission) CanTransition(event SubmissionEvent) bool {
	_, ok := NextState(s.State, event)
	return ok
}

// LatestAnswers derives the current answer for each distinct question: the
// answer with the greatest creation timestamp, ties broken by the physically
// later record. Pointers index into s.Answers.
func (s *Submission) LatestAnswers() map[uint]*Answer {
	latest := make(map[uint]*Answer, len(s.Answers))
	for i := range s.Answers {
		answer := &s.Answers[i]
		current, ok := latest[answer.QuestionID]
		if !ok || !answer.CreatedAt.Before(current.CreatedAt) {
			latest[answer.QuestionID] = answer
		}
	}
	return latest
}

// LatestAnswerFor returns the current answer for one question, or nil when
// the question has not been attempted.
func (s *Submission) LatestAnswerFor(questionID uint) *Answer {
	return s.LatestAnswers()[questionID]
}

// Grade sums the grades of the latest answer per question. Ungraded answers
// count as zero.
func (s *Submission) Grade() float64 {
	var total float64
	for _, answer := range s.LatestAnswers() {
		if answer.Grade != nil {
			total += *answer.Grade
		}
	}
	return total
}

// SubmittedAt is the latest submitted timestamp across all answers, nil when
// no answer has been submitted.
func (s *Submission) SubmittedAt() *time.Time {
	return maxAnswerTime(s.Answers, func(a Answer) *time.Time { return a.SubmittedAt })
}

// GradedAt is the latest graded timestamp across all answers, nil when no
// answer has been graded.
func (s *Submission) GradedAt() *time.Time {
	return maxAnswerTime(s.Answers, func(a Answer) *time.Time { return a.GradedAt })
}

func maxAnswerTime(answers []Answer, pick func(Answer) *time.Time) *time.Time {
	var max *time.Time
	for _, answer := range answers {
		t := pick(answer)
		if t == nil {
			continue
		}
		if max == nil || t.After(*max) {
			value := *t
			max = &value
		}
	}
	return max
}
