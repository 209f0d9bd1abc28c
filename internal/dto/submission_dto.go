package dto

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// SubmissionCreateRequest describes the payload for starting an attempt.
// PointsUserID defaults to the creator; admin flows may point the ledger at
// another member, which the consistency validator then rejects or accepts.
type SubmissionCreateRequest struct {
	AssessmentID uint  `json:"assessment_id" validate:"required,gt=0"`
	PointsUserID *uint `json:"points_user_id" validate:"omitempty,gt=0"`
}

// AnswerSaveRequest appends a new answer for a question. Earlier answers to
// the same question are kept as history.
type AnswerSaveRequest struct {
	QuestionID uint            `json:"question_id" validate:"required,gt=0"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
}

// AnswerResponse serializes one answer record.
type AnswerResponse struct {
	ID          uint            `json:"id"`
	QuestionID  uint            `json:"question_id"`
	State       string          `json:"state"`
	Payload     json.RawMessage `json:"payload"`
	Grade       *float64        `json:"grade"`
	CreatedAt   time.Time       `json:"created_at"`
	SubmittedAt *time.Time      `json:"submitted_at"`
	GradedAt    *time.Time      `json:"graded_at"`
}

// SubmissionResponse is returned to API clients when viewing a submission.
// Answers holds the current (latest per question) answers only; Grade and
// the timestamps are derived from the full answer history.
type SubmissionResponse struct {
	ID            uint             `json:"id"`
	AssessmentID  uint             `json:"assessment_id"`
	CreatorID     uint             `json:"creator_id"`
	State         string           `json:"state"`
	Grade         float64          `json:"grade"`
	PointsAwarded *int             `json:"points_awarded"`
	SubmittedAt   *time.Time       `json:"submitted_at"`
	GradedAt      *time.Time       `json:"graded_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Answers       []AnswerResponse `json:"answers"`
}

// GradingTaskResponse serializes a grading task handle for progress display.
type GradingTaskResponse struct {
	Handle       string     `json:"handle"`
	SubmissionID uint       `json:"submission_id"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DispatchedAt *time.Time `json:"dispatched_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}

// NewAnswerResponse converts an Answer model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:          model.ID,
		QuestionID:  model.QuestionID,
		State:       string(model.State),
		Payload:     json.RawMessage(model.Payload),
		Grade:       model.Grade,
		CreatedAt:   model.CreatedAt,
		SubmittedAt: model.SubmittedAt,
		GradedAt:    model.GradedAt,
	}
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	latest := model.LatestAnswers()
	answers := make([]AnswerResponse, 0, len(latest))
	for _, answer := range latest {
		answers = append(answers, NewAnswerResponse(*answer))
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })

	return SubmissionResponse{
		ID:            model.ID,
		AssessmentID:  model.AssessmentID,
		CreatorID:     model.CreatorID,
		State:         string(model.State),
		Grade:         model.Grade(),
		PointsAwarded: model.PointsAwarded,
		SubmittedAt:   model.SubmittedAt(),
		GradedAt:      model.GradedAt(),
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
		Answers:       answers,
	}
}

// NewGradingTaskResponse converts a GradingTask model into a DTO.
func NewGradingTaskResponse(model models.GradingTask) GradingTaskResponse {
	return GradingTaskResponse{
		Handle:       model.Handle,
		SubmissionID: model.SubmissionID,
		Status:       model.Status,
		Error:        model.Error,
		CreatedAt:    model.CreatedAt,
		DispatchedAt: model.DispatchedAt,
		ResolvedAt:   model.ResolvedAt,
	}
}
