package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// TransitionChange bundles everything one lifecycle transition must persist
// atomically: the submission row, the answers the cascade touched, the
// points record when unsubmit cleared it, and the outbox task row when the
// transition landed on submitted.
type TransitionChange struct {
	Submission *models.Submission
	Answers    []*models.Answer
	Points     *models.ExperiencePointsRecord
	Task       *models.GradingTask
}

// SubmissionRepository defines data operations for submissions and their
// answer history.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindActive(ctx context.Context, assessmentID, creatorID uint) (models.Submission, error)
	ListByCreator(ctx context.Context, assessmentID, creatorID uint) ([]models.Submission, error)
	CreateWithPoints(ctx context.Context, submission *models.Submission, points *models.ExperiencePointsRecord) error
	CreateAnswer(ctx context.Context, answer *models.Answer) error
	ApplyTransition(ctx context.Context, change TransitionChange) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assessment").
		Preload("Assessment.Questions").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// FindActive returns the live (non soft-deleted) submission for an
// (assessment, creator) pair. gorm.ErrRecordNotFound means none exists.
func (r *submissionRepository) FindActive(ctx context.Context, assessmentID, creatorID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("creator_id = ?", creatorID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// ListByCreator returns the caller's submissions for an assessment, newest
// first.
func (r *submissionRepository) ListByCreator(ctx context.Context, assessmentID, creatorID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// CreateWithPoints persists a new submission and its linked points record in
// one transaction so neither can exist without the other.
func (r *submissionRepository) CreateWithPoints(ctx context.Context, submission *models.Submission, points *models.ExperiencePointsRecord) error {
	if submission == nil || points == nil {
		return errors.New("submission and points record are required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(submission).Error; err != nil {
			return err
		}

		points.SubmissionID = submission.ID
		return tx.Create(points).Error
	})
}

func (r *submissionRepository) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

// ApplyTransition commits a full transition atomically. On any failure the
// transaction rolls back and no partial cascade is observable.
func (r *submissionRepository) ApplyTransition(ctx context.Context, change TransitionChange) error {
	if change.Submission == nil {
		return errors.New("submission is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Associations are preloaded on the submission; the cascade already
		// carries the touched answers explicitly, so they must not be
		// re-saved through the parent.
		if err := tx.Omit(clause.Associations).Save(change.Submission).Error; err != nil {
			return err
		}

		for _, answer := range change.Answers {
			if err := tx.Save(answer).Error; err != nil {
				return err
			}
		}

		if change.Points != nil {
			if err := tx.Save(change.Points).Error; err != nil {
				return err
			}
		}

		if change.Task != nil {
			if err := tx.Create(change.Task).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
