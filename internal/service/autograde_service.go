package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/dto"
	"github.com/noah-isme/ujian-go-api/internal/grading"
	"github.com/noah-isme/ujian-go-api/internal/models"
	"github.com/noah-isme/ujian-go-api/internal/observability"
	"github.com/noah-isme/ujian-go-api/internal/repository"
)

const taskStatusTTL = 24 * time.Hour

// AutogradeService schedules and executes asynchronous grading work. Tasks
// are recorded as outbox rows inside the triggering transaction and flushed
// to NATS only after commit; workers re-read submission state from the store
// and tolerate duplicated or delayed execution.
type AutogradeService interface {
	GradeDispatcher
	Dispatch(ctx context.Context, submissionID uint, actor Actor) (dto.GradingTaskResponse, error)
	TaskStatus(ctx context.Context, handle string) (dto.GradingTaskResponse, error)
	FlushPending(ctx context.Context)
	Start(ctx context.Context) error
}

type gradingTaskMessage struct {
	Handle       string    `json:"handle"`
	SubmissionID uint      `json:"submission_id"`
	SentAt       time.Time `json:"sent_at"`
}

type autogradeService struct {
	tasks       repository.GradingTaskRepository
	submissions repository.SubmissionRepository
	nats        *nats.Conn
	subject     string
	queue       string
	redis       *redis.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAutogradeService constructs an AutogradeService instance.
func NewAutogradeService(taskRepo repository.GradingTaskRepository, subRepo repository.SubmissionRepository, natsConn *nats.Conn, subject string, redisClient *redis.Client, logger zerolog.Logger) AutogradeService {
	return &autogradeService{
		tasks:       taskRepo,
		submissions: subRepo,
		nats:        natsConn,
		subject:     subject,
		queue:       "ujian-grading",
		redis:       redisClient,
		logger:      logger.With().Str("component", "autograde_service").Logger(),
		now:         time.Now,
	}
}

// Dispatch manually schedules a grading task, bypassing the state-change
// trigger. Restricted to staff; returns the handle so the caller can track
// progress.
func (s *autogradeService) Dispatch(ctx context.Context, submissionID uint, actor Actor) (dto.GradingTaskResponse, error) {
	if !actor.IsStaff() {
		return dto.GradingTaskResponse{}, ErrForbidden
	}

	if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradingTaskResponse{}, ErrSubmissionNotFound
		}
		return dto.GradingTaskResponse{}, err
	}

	task := models.GradingTask{
		Handle:       uuid.NewString(),
		SubmissionID: submissionID,
		Status:       models.GradingTaskStatusPending,
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return dto.GradingTaskResponse{}, err
	}

	s.FlushTask(ctx, task)

	stored, err := s.tasks.GetByHandle(ctx, task.Handle)
	if err != nil {
		return dto.GradingTaskResponse{}, err
	}

	return dto.NewGradingTaskResponse(stored), nil
}

// FlushTask publishes a committed outbox row to the broker. A publish
// failure leaves the row pending for the recovery sweep.
func (s *autogradeService) FlushTask(ctx context.Context, task models.GradingTask) {
	if s.nats == nil || s.subject == "" {
		return
	}

	message := gradingTaskMessage{
		Handle:       task.Handle,
		SubmissionID: task.SubmissionID,
		SentAt:       s.now().UTC(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error().Err(err).Str("handle", task.Handle).Msg("failed to encode grading task")
		return
	}

	if err := s.nats.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("handle", task.Handle).Msg("failed to publish grading task, leaving pending")
		return
	}

	if err := s.tasks.MarkDispatched(ctx, task.Handle); err != nil {
		s.logger.Warn().Err(err).Str("handle", task.Handle).Msg("failed to mark grading task dispatched")
	}

	s.cacheStatus(ctx, task.Handle, models.GradingTaskStatusDispatched)
	observability.GradingTasks().WithLabelValues(models.GradingTaskStatusDispatched).Inc()
}

// FlushPending re-publishes outbox rows whose dispatch never happened, e.g.
// after a crash between commit and publish.
func (s *autogradeService) FlushPending(ctx context.Context) {
	pending, err := s.tasks.ListPending(ctx, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list pending grading tasks")
		return
	}

	for _, task := range pending {
		s.FlushTask(ctx, task)
	}
}

// TaskStatus reports task progress, serving from the Redis cache when warm.
func (s *autogradeService) TaskStatus(ctx context.Context, handle string) (dto.GradingTaskResponse, error) {
	task, err := s.tasks.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradingTaskResponse{}, ErrTaskNotFound
		}
		return dto.GradingTaskResponse{}, err
	}

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, taskStatusKey(handle)).Result(); err == nil && cached != "" {
			task.Status = cached
		}
	}

	return dto.NewGradingTaskResponse(task), nil
}

// Start subscribes the grading worker to the task subject. Queue semantics
// spread tasks across instances; each execution re-reads submission state.
func (s *autogradeService) Start(ctx context.Context) error {
	if s.nats == nil || s.subject == "" {
		return nil
	}

	sub, err := s.nats.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		var message gradingTaskMessage
		if err := json.Unmarshal(msg.Data, &message); err != nil {
			s.logger.Warn().Err(err).Msg("invalid grading task payload")
			return
		}
		s.execute(context.Background(), message)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to grading subject: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain grading subscription")
		}
	}()

	return nil
}

// execute runs one grading task. The task may be stale, duplicated, or
// arbitrarily delayed, so everything is re-derived from the store here.
func (s *autogradeService) execute(ctx context.Context, message gradingTaskMessage) {
	submission, err := s.submissions.GetByID(ctx, message.SubmissionID)
	if err != nil {
		s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, fmt.Sprintf("load submission: %v", err))
		return
	}

	if submission.State != models.StateSubmitted {
		// Lifecycle moved on while the task sat in the queue. Nothing to do.
		s.resolve(ctx, message.Handle, models.GradingTaskStatusCompleted, "")
		return
	}

	questions := make(map[uint]models.Question, len(submission.Assessment.Questions))
	for _, question := range submission.Assessment.Questions {
		questions[question.ID] = question
	}

	var graded []*models.Answer
	for _, answer := range submission.LatestAnswers() {
		if answer.State != models.StateSubmitted {
			continue
		}

		question, ok := questions[answer.QuestionID]
		if !ok {
			s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, fmt.Sprintf("question %d missing", answer.QuestionID))
			return
		}

		grader, err := grading.GraderFor(question)
		if err != nil {
			// A kind without a grading capability is a configuration error:
			// the task fails loudly instead of skipping the answer.
			s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, err.Error())
			return
		}

		grade, err := grader.Grade(question, *answer)
		if err != nil {
			s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, err.Error())
			return
		}

		answer.Grade = &grade
		graded = append(graded, answer)
	}

	change := repository.TransitionChange{Submission: &submission, Answers: graded}

	// Autograded assessments publish immediately; otherwise grades wait for
	// a staff publish. The publish cascade covers every submitted answer,
	// superseded ones included.
	if submission.Assessment.Autograded {
		now := s.now().UTC()
		touched := make(map[*models.Answer]struct{}, len(graded))
		for _, answer := range graded {
			touched[answer] = struct{}{}
		}
		for i := range submission.Answers {
			answer := &submission.Answers[i]
			if answer.State != models.StateSubmitted {
				continue
			}
			if err := answer.Transition(models.EventPublish, false, now); err != nil {
				s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, err.Error())
				return
			}
			if _, ok := touched[answer]; !ok {
				change.Answers = append(change.Answers, answer)
			}
		}
		if next, ok := models.NextState(submission.State, models.EventPublish); ok {
			submission.State = next
		}
	}

	if err := s.submissions.ApplyTransition(ctx, change); err != nil {
		s.resolve(ctx, message.Handle, models.GradingTaskStatusFailed, fmt.Sprintf("persist grades: %v", err))
		return
	}

	s.resolve(ctx, message.Handle, models.GradingTaskStatusCompleted, "")
	s.logger.Info().
		Str("handle", message.Handle).
		Uint("submission_id", submission.ID).
		Int("answers_graded", len(graded)).
		Msg("grading task completed")
}

func (s *autogradeService) resolve(ctx context.Context, handle, status, errorMessage string) {
	if err := s.tasks.Resolve(ctx, handle, status, errorMessage); err != nil {
		s.logger.Warn().Err(err).Str("handle", handle).Msg("failed to resolve grading task")
	}
	s.cacheStatus(ctx, handle, status)
	observability.GradingTasks().WithLabelValues(status).Inc()

	if status == models.GradingTaskStatusFailed {
		s.logger.Error().Str("handle", handle).Str("error", errorMessage).Msg("grading task failed")
	}
}

func (s *autogradeService) cacheStatus(ctx context.Context, handle, status string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, taskStatusKey(handle), status, taskStatusTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("handle", handle).Msg("failed to cache grading task status")
	}
}

func taskStatusKey(handle string) string {
	return "ujian:grading:task:" + handle
}
