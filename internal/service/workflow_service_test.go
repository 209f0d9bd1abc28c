package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/models"
	"github.com/noah-isme/ujian-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeSubmissionRepo struct {
	submission     models.Submission
	active         *models.Submission
	applied        []repository.TransitionChange
	createdAnswers []*models.Answer
	nextAnswerID   uint
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	if f.submission.ID != id {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return f.submission, nil
}

func (f *fakeSubmissionRepo) FindActive(ctx context.Context, assessmentID, creatorID uint) (models.Submission, error) {
	if f.active != nil && f.active.AssessmentID == assessmentID && f.active.CreatorID == creatorID {
		return *f.active, nil
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) ListByCreator(ctx context.Context, assessmentID, creatorID uint) ([]models.Submission, error) {
	if f.submission.AssessmentID == assessmentID && f.submission.CreatorID == creatorID {
		return []models.Submission{f.submission}, nil
	}
	return nil, nil
}

func (f *fakeSubmissionRepo) CreateWithPoints(ctx context.Context, submission *models.Submission, points *models.ExperiencePointsRecord) error {
	submission.ID = 1
	points.ID = 1
	points.SubmissionID = submission.ID
	f.submission = *submission
	return nil
}

func (f *fakeSubmissionRepo) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	f.nextAnswerID++
	answer.ID = f.nextAnswerID
	answer.CreatedAt = time.Now().UTC()
	f.createdAnswers = append(f.createdAnswers, answer)
	f.submission.Answers = append(f.submission.Answers, *answer)
	return nil
}

func (f *fakeSubmissionRepo) ApplyTransition(ctx context.Context, change repository.TransitionChange) error {
	f.applied = append(f.applied, change)
	f.submission = *change.Submission
	return nil
}

type fakePointsRepo struct {
	record   *models.ExperiencePointsRecord
	saved    []models.ExperiencePointsRecord
	getCalls int
}

func (f *fakePointsRepo) GetBySubmission(ctx context.Context, submissionID uint) (models.ExperiencePointsRecord, error) {
	f.getCalls++
	if f.record == nil || f.record.SubmissionID != submissionID {
		return models.ExperiencePointsRecord{}, gorm.ErrRecordNotFound
	}
	return *f.record, nil
}

func (f *fakePointsRepo) Save(ctx context.Context, record *models.ExperiencePointsRecord) error {
	f.saved = append(f.saved, *record)
	return nil
}

type fakeDispatcher struct {
	flushed []models.GradingTask
}

func (f *fakeDispatcher) FlushTask(ctx context.Context, task models.GradingTask) {
	f.flushed = append(f.flushed, task)
}

func workflowFixture(state models.SubmissionState, answers []models.Answer) (*fakeSubmissionRepo, *fakePointsRepo, *fakeDispatcher, WorkflowService) {
	awarded := 100
	repo := &fakeSubmissionRepo{submission: models.Submission{
		ID:           1,
		AssessmentID: 2,
		CreatorID:    3,
		State:        state,
		Answers:      answers,
	}}
	points := &fakePointsRepo{record: &models.ExperiencePointsRecord{ID: 1, SubmissionID: 1, UserID: 3, PointsAwarded: &awarded}}
	dispatcher := &fakeDispatcher{}
	svc := NewWorkflowService(repo, points, dispatcher, testLogger())
	return repo, points, dispatcher, svc
}

func TestTransitionFinaliseCascadesAttemptingAnswers(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _, dispatcher, svc := workflowFixture(models.StateAttempting, []models.Answer{
		{ID: 1, SubmissionID: 1, QuestionID: 1, State: models.StateAttempting, CreatedAt: base},
		{ID: 2, SubmissionID: 1, QuestionID: 2, State: models.StateAttempting, CreatedAt: base},
		{ID: 3, SubmissionID: 1, QuestionID: 3, State: models.StateSubmitted, CreatedAt: base},
	})

	response, err := svc.Transition(context.Background(), 1, models.EventFinalise, Actor{ID: 3})
	require.NoError(t, err)
	require.Equal(t, string(models.StateSubmitted), response.State)

	require.Len(t, repo.applied, 1)
	change := repo.applied[0]
	require.Len(t, change.Answers, 2, "only attempting answers cascade")
	for _, answer := range repo.submission.Answers {
		require.Equal(t, models.StateSubmitted, answer.State)
	}

	require.NotNil(t, change.Task, "landing on submitted writes the outbox row")
	require.Len(t, dispatcher.flushed, 1, "task flushed exactly once after commit")
	require.Equal(t, change.Task.Handle, dispatcher.flushed[0].Handle)
}

func TestTransitionPublishCascadesSubmittedAnswers(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _, dispatcher, svc := workflowFixture(models.StateSubmitted, []models.Answer{
		{ID: 1, SubmissionID: 1, QuestionID: 1, State: models.StateSubmitted, CreatedAt: base},
		{ID: 2, SubmissionID: 1, QuestionID: 2, State: models.StateAttempting, CreatedAt: base},
	})

	response, err := svc.Transition(context.Background(), 1, models.EventPublish, Actor{ID: 9, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, string(models.StateGraded), response.State)

	require.Len(t, repo.applied, 1)
	require.Len(t, repo.applied[0].Answers, 1)
	require.Equal(t, models.StateGraded, repo.submission.Answers[0].State)
	require.Equal(t, models.StateAttempting, repo.submission.Answers[1].State, "non-submitted answers untouched")
	require.Nil(t, repo.applied[0].Task)
	require.Empty(t, dispatcher.flushed, "publish never schedules grading")
}

func TestTransitionUnsubmitRevertsOnlyLatestAnswers(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	grade := 5.0
	repo, points, dispatcher, svc := workflowFixture(models.StateGraded, []models.Answer{
		{ID: 1, SubmissionID: 1, QuestionID: 1, State: models.StateGraded, Grade: &grade, CreatedAt: base},
		{ID: 2, SubmissionID: 1, QuestionID: 1, State: models.StateGraded, Grade: &grade, CreatedAt: base.Add(time.Minute)},
		{ID: 3, SubmissionID: 1, QuestionID: 2, State: models.StateSubmitted, CreatedAt: base},
	})
	awarded := 100
	repo.submission.PointsAwarded = &awarded

	response, err := svc.Transition(context.Background(), 1, models.EventUnsubmit, Actor{ID: 9, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, string(models.StateAttempting), response.State)

	require.Len(t, repo.applied, 1)
	change := repo.applied[0]
	require.Len(t, change.Answers, 2, "latest answer per question only")

	byID := map[uint]models.Answer{}
	for _, answer := range repo.submission.Answers {
		byID[answer.ID] = answer
	}
	require.Equal(t, models.StateGraded, byID[1].State, "superseded answer keeps its state")
	require.Equal(t, models.StateAttempting, byID[2].State)
	require.Nil(t, byID[2].Grade)
	require.Equal(t, models.StateAttempting, byID[3].State)

	require.Nil(t, repo.submission.PointsAwarded)
	require.NotNil(t, change.Points, "points cleared in the same transaction")
	require.Nil(t, change.Points.PointsAwarded)
	require.Equal(t, 1, points.getCalls)

	require.Nil(t, change.Task)
	require.Empty(t, dispatcher.flushed)
}

func TestTransitionInvalidEventLeavesEverythingUntouched(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _, dispatcher, svc := workflowFixture(models.StateAttempting, []models.Answer{
		{ID: 1, SubmissionID: 1, QuestionID: 1, State: models.StateAttempting, CreatedAt: base},
	})
	before := repo.submission

	_, err := svc.Transition(context.Background(), 1, models.EventPublish, Actor{ID: 9, Role: "teacher"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Empty(t, repo.applied)
	require.Empty(t, dispatcher.flushed)
	require.Equal(t, before, repo.submission)
}

func TestTransitionUnknownSubmission(t *testing.T) {
	_, _, _, svc := workflowFixture(models.StateAttempting, nil)

	_, err := svc.Transition(context.Background(), 99, models.EventFinalise, Actor{ID: 3})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestTransitionRoleGates(t *testing.T) {
	_, _, _, svc := workflowFixture(models.StateSubmitted, nil)

	_, err := svc.Transition(context.Background(), 1, models.EventPublish, Actor{ID: 3, Role: "student"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Transition(context.Background(), 1, models.EventUnsubmit, Actor{ID: 3, Role: "student"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestTransitionFinaliseByOtherStudentForbidden(t *testing.T) {
	_, _, _, svc := workflowFixture(models.StateAttempting, nil)

	_, err := svc.Transition(context.Background(), 1, models.EventFinalise, Actor{ID: 77, Role: "student"})
	require.ErrorIs(t, err, ErrForbidden)
}
