package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Assessment{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
		&models.ExperiencePointsRecord{},
		&models.GradingTask{},
		&models.CourseUser{},
	))
	return db
}

func TestCreateWithPointsLinksRecords(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{AssessmentID: 1, CreatorID: 2, State: models.StateAttempting}
	points := models.ExperiencePointsRecord{UserID: 2}
	require.NoError(t, repo.CreateWithPoints(context.Background(), &submission, &points))
	require.NotZero(t, submission.ID)
	require.Equal(t, submission.ID, points.SubmissionID)
}

func TestFindActiveIgnoresSoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{AssessmentID: 5, CreatorID: 9, State: models.StateAttempting}
	require.NoError(t, db.Create(&submission).Error)

	found, err := repo.FindActive(context.Background(), 5, 9)
	require.NoError(t, err)
	require.Equal(t, submission.ID, found.ID)

	require.NoError(t, db.Delete(&submission).Error)

	_, err = repo.FindActive(context.Background(), 5, 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByCreatorScopesToCaller(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	mine := models.Submission{AssessmentID: 5, CreatorID: 9, State: models.StateAttempting}
	other := models.Submission{AssessmentID: 5, CreatorID: 10, State: models.StateAttempting}
	require.NoError(t, db.Create(&mine).Error)
	require.NoError(t, db.Create(&other).Error)

	listed, err := repo.ListByCreator(context.Background(), 5, 9)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, mine.ID, listed[0].ID)
}

func TestApplyTransitionPersistsEverythingTogether(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{AssessmentID: 1, CreatorID: 2, State: models.StateAttempting}
	points := models.ExperiencePointsRecord{UserID: 2}
	require.NoError(t, repo.CreateWithPoints(context.Background(), &submission, &points))

	answer := models.Answer{SubmissionID: submission.ID, QuestionID: 3, State: models.StateAttempting}
	require.NoError(t, repo.CreateAnswer(context.Background(), &answer))

	now := time.Now().UTC()
	submission.State = models.StateSubmitted
	require.NoError(t, answer.Transition(models.EventFinalise, false, now))

	task := models.GradingTask{Handle: "handle-1", SubmissionID: submission.ID, Status: models.GradingTaskStatusPending}
	require.NoError(t, repo.ApplyTransition(context.Background(), TransitionChange{
		Submission: &submission,
		Answers:    []*models.Answer{&answer},
		Task:       &task,
	}))

	reloaded, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateSubmitted, reloaded.State)
	require.Len(t, reloaded.Answers, 1)
	require.Equal(t, models.StateSubmitted, reloaded.Answers[0].State)

	var storedTask models.GradingTask
	require.NoError(t, db.Where("handle = ?", "handle-1").First(&storedTask).Error)
	require.Equal(t, submission.ID, storedTask.SubmissionID)
}

func TestGradingTaskLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingTaskRepository(db)

	task := models.GradingTask{Handle: "h-42", SubmissionID: 1, Status: models.GradingTaskStatusPending}
	require.NoError(t, repo.Create(context.Background(), &task))

	pending, err := repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.MarkDispatched(context.Background(), "h-42"))

	// A second dispatch attempt is a no-op: the status guard only matches
	// pending rows.
	require.NoError(t, repo.MarkDispatched(context.Background(), "h-42"))

	stored, err := repo.GetByHandle(context.Background(), "h-42")
	require.NoError(t, err)
	require.Equal(t, models.GradingTaskStatusDispatched, stored.Status)
	require.NotNil(t, stored.DispatchedAt)

	require.NoError(t, repo.Resolve(context.Background(), "h-42", models.GradingTaskStatusCompleted, ""))
	stored, err = repo.GetByHandle(context.Background(), "h-42")
	require.NoError(t, err)
	require.Equal(t, models.GradingTaskStatusCompleted, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
}
