package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/dto"
	"github.com/noah-isme/ujian-go-api/internal/grading"
	"github.com/noah-isme/ujian-go-api/internal/models"
	"github.com/noah-isme/ujian-go-api/internal/observability"
	"github.com/noah-isme/ujian-go-api/internal/repository"
)

// SubmissionService orchestrates submission creation, answer history, and
// the read-side queries.
type SubmissionService interface {
	Create(ctx context.Context, creatorID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	ListMine(ctx context.Context, assessmentID, creatorID uint) ([]dto.SubmissionResponse, error)
	Grade(ctx context.Context, id uint) (float64, error)
	LatestAnswer(ctx context.Context, submissionID, questionID uint) (*dto.AnswerResponse, error)
	SaveAnswer(ctx context.Context, submissionID, creatorID uint, payload dto.AnswerSaveRequest) (dto.AnswerResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assessments repository.AssessmentRepository
	members     repository.CourseUserRepository
	notifier    SubmissionNotifier
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, assessmentRepo repository.AssessmentRepository, memberRepo repository.CourseUserRepository, notifier SubmissionNotifier, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		assessments: assessmentRepo,
		members:     memberRepo,
		notifier:    notifier,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, creatorID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/ujian-go-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.create")
	span.SetAttributes(
		attribute.Int64("submission.assessment_id", int64(payload.AssessmentID)),
		attribute.Int64("submission.creator_id", int64(creatorID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	assessment, err := s.assessments.GetByID(ctx, payload.AssessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssessmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	pointsUserID := creatorID
	if payload.PointsUserID != nil {
		pointsUserID = *payload.PointsUserID
	}

	if err := s.validateCreation(ctx, assessment, creatorID, pointsUserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "creation_validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		AssessmentID: assessment.ID,
		CreatorID:    creatorID,
		State:        models.StateAttempting,
	}
	points := models.ExperiencePointsRecord{
		UserID: pointsUserID,
		Reason: fmt.Sprintf("attempt: %s", assessment.Title),
	}

	if err := s.submissions.CreateWithPoints(ctx, &submission, &points); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	s.notifyCreated(ctx, assessment, submission)

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", created.ID).Uint("assessment_id", assessment.ID).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

// validateCreation collects creation-time failures so the caller sees all of
// them at once. A duplicate submission short-circuits and replaces the
// collected issues: the right fix is to resume the existing attempt, not to
// repair this request.
func (s *submissionService) validateCreation(ctx context.Context, assessment models.Assessment, creatorID, pointsUserID uint) error {
	var issues []error

	if creatorID != pointsUserID {
		issues = append(issues, ErrInconsistentCreator)
	}

	if !assessment.HasQuestions() {
		issues = append(issues, ErrEmptyAssessment)
	}

	_, err := s.submissions.FindActive(ctx, assessment.ID, creatorID)
	switch {
	case err == nil:
		return ErrDuplicateSubmission
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if len(issues) > 0 {
		return &ValidationErrors{Issues: issues}
	}

	return nil
}

func (s *submissionService) notifyCreated(ctx context.Context, assessment models.Assessment, submission models.Submission) {
	member, err := s.members.GetMember(ctx, assessment.CourseID, submission.CreatorID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to resolve course membership")
		return
	}

	if err != nil || !member.IsStudent() {
		observability.NotificationsSuppressed().Inc()
		return
	}

	event := SubmissionCreatedEvent{
		SubmissionID:    submission.ID,
		AssessmentID:    assessment.ID,
		AssessmentTitle: assessment.Title,
		CreatorID:       submission.CreatorID,
		CreatorName:     member.Name,
	}
	if err := s.notifier.SubmissionCreated(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to emit submission created event")
	}
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// ListMine returns the caller's own submissions for an assessment, newest
// first. Soft-deleted attempts are excluded by the repository.
func (s *submissionService) ListMine(ctx context.Context, assessmentID, creatorID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.assessments.GetByID(ctx, assessmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}

	submissions, err := s.submissions.ListByCreator(ctx, assessmentID, creatorID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission))
	}

	return responses, nil
}

func (s *submissionService) Grade(ctx context.Context, id uint) (float64, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSubmissionNotFound
		}
		return 0, err
	}

	return submission.Grade(), nil
}

// LatestAnswer returns the current answer for one question, or nil when the
// question has not been attempted yet.
func (s *submissionService) LatestAnswer(ctx context.Context, submissionID, questionID uint) (*dto.AnswerResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	answer := submission.LatestAnswerFor(questionID)
	if answer == nil {
		return nil, nil
	}

	response := dto.NewAnswerResponse(*answer)
	return &response, nil
}

// SaveAnswer appends a new answer record for a question. Prior answers to
// the same question stay untouched as history; the resolver picks the newest
// wherever current state is needed.
func (s *submissionService) SaveAnswer(ctx context.Context, submissionID, creatorID uint, payload dto.AnswerSaveRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrSubmissionNotFound
		}
		return dto.AnswerResponse{}, err
	}

	if submission.CreatorID != creatorID {
		return dto.AnswerResponse{}, ErrForbidden
	}

	if submission.State != models.StateAttempting {
		return dto.AnswerResponse{}, ErrInvalidTransition
	}

	var question *models.Question
	for i := range submission.Assessment.Questions {
		if submission.Assessment.Questions[i].ID == payload.QuestionID {
			question = &submission.Assessment.Questions[i]
			break
		}
	}
	if question == nil {
		return dto.AnswerResponse{}, ErrQuestionNotFound
	}

	answer, err := grading.Attempt(*question, submission.ID, payload.Payload)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	if err := s.submissions.CreateAnswer(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, err
	}

	return dto.NewAnswerResponse(answer), nil
}
