package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/dto"
	"github.com/noah-isme/ujian-go-api/internal/models"
	"github.com/noah-isme/ujian-go-api/internal/observability"
	"github.com/noah-isme/ujian-go-api/internal/repository"
)

// Actor identifies who requested a transition.
type Actor struct {
	ID   uint
	Role string
}

// IsStaff reports whether the actor may drive grading-side transitions.
func (a Actor) IsStaff() bool {
	role := strings.ToLower(strings.TrimSpace(a.Role))
	return role == "teacher" || role == "admin"
}

// GradeDispatcher flushes a committed grading outbox row to the async
// transport. Implemented by the autograde service.
type GradeDispatcher interface {
	FlushTask(ctx context.Context, task models.GradingTask)
}

// WorkflowService drives the submission lifecycle: transition validation,
// the cascade over answers, and the deferred auto-grade trigger.
type WorkflowService interface {
	Transition(ctx context.Context, submissionID uint, event models.SubmissionEvent, actor Actor) (dto.SubmissionResponse, error)
}

type workflowService struct {
	submissions repository.SubmissionRepository
	points      repository.ExperiencePointsRepository
	dispatcher  GradeDispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewWorkflowService constructs a WorkflowService instance.
func NewWorkflowService(subRepo repository.SubmissionRepository, pointsRepo repository.ExperiencePointsRepository, dispatcher GradeDispatcher, logger zerolog.Logger) WorkflowService {
	return &workflowService{
		submissions: subRepo,
		points:      pointsRepo,
		dispatcher:  dispatcher,
		logger:      logger.With().Str("component", "workflow_service").Logger(),
		now:         time.Now,
	}
}

func (s *workflowService) Transition(ctx context.Context, submissionID uint, event models.SubmissionEvent, actor Actor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/ujian-go-api/internal/service/workflow")
	ctx, span := tracer.Start(ctx, "submission.transition")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.String("submission.event", string(event)),
	)
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if err := s.authorize(event, actor, submission); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, err
	}

	next, ok := models.NextState(submission.State, event)
	if !ok {
		observability.SubmissionTransitions().WithLabelValues(string(event), "rejected").Inc()
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.SubmissionResponse{}, ErrInvalidTransition
	}

	now := s.now().UTC()
	change := repository.TransitionChange{Submission: &submission}

	switch event {
	case models.EventFinalise:
		change.Answers, err = cascadeByState(&submission, models.EventFinalise, models.StateAttempting, now)
	case models.EventPublish:
		change.Answers, err = cascadeByState(&submission, models.EventPublish, models.StateSubmitted, now)
	case models.EventUnsubmit:
		change.Answers, err = s.cascadeUnsubmit(ctx, &submission, &change, now)
	}
	if err != nil {
		observability.SubmissionTransitions().WithLabelValues(string(event), "error").Inc()
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	stateChanged := submission.State != next
	submission.State = next

	if stateChanged && next == models.StateSubmitted {
		change.Task = &models.GradingTask{
			Handle:       uuid.NewString(),
			SubmissionID: submission.ID,
			Status:       models.GradingTaskStatusPending,
		}
	}

	if err := s.submissions.ApplyTransition(ctx, change); err != nil {
		observability.SubmissionTransitions().WithLabelValues(string(event), "error").Inc()
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	// The outbox row is durable at this point; the enqueue happens strictly
	// after commit so a rollback can never orphan an external task.
	if change.Task != nil && s.dispatcher != nil {
		s.dispatcher.FlushTask(ctx, *change.Task)
	}

	observability.SubmissionTransitions().WithLabelValues(string(event), "success").Inc()
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("event", string(event)).
		Str("state", string(submission.State)).
		Int("answers_cascaded", len(change.Answers)).
		Msg("submission transitioned")

	updated, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(updated), nil
}

func (s *workflowService) authorize(event models.SubmissionEvent, actor Actor, submission models.Submission) error {
	switch event {
	case models.EventFinalise:
		if actor.ID != submission.CreatorID && !actor.IsStaff() {
			return ErrForbidden
		}
	case models.EventPublish, models.EventUnsubmit:
		if !actor.IsStaff() {
			return ErrForbidden
		}
	}
	return nil
}

// cascadeByState drives the event on every answer currently in the matching
// state. Answers in other states are untouched.
func cascadeByState(submission *models.Submission, event models.SubmissionEvent, from models.SubmissionState, at time.Time) ([]*models.Answer, error) {
	var changed []*models.Answer
	for i := range submission.Answers {
		answer := &submission.Answers[i]
		if answer.State != from {
			continue
		}
		if err := answer.Transition(event, false, at); err != nil {
			return nil, err
		}
		changed = append(changed, answer)
	}
	return changed, nil
}

// cascadeUnsubmit reverts only the latest answer per question that has been
// handed in; superseded answers are historical records and keep their state.
// The force flag bypasses the answers' own state guard, and the awarded
// points value is cleared in the same transaction.
func (s *workflowService) cascadeUnsubmit(ctx context.Context, submission *models.Submission, change *repository.TransitionChange, at time.Time) ([]*models.Answer, error) {
	var changed []*models.Answer
	for _, answer := range submission.LatestAnswers() {
		if answer.State != models.StateSubmitted && answer.State != models.StateGraded {
			continue
		}
		if err := answer.Transition(models.EventUnsubmit, true, at); err != nil {
			return nil, err
		}
		changed = append(changed, answer)
	}

	submission.PointsAwarded = nil

	record, err := s.points.GetBySubmission(ctx, submission.ID)
	switch {
	case err == nil:
		record.PointsAwarded = nil
		change.Points = &record
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return changed, nil
}
