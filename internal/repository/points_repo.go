package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// ExperiencePointsRepository defines data operations for the points ledger.
type ExperiencePointsRepository interface {
	GetBySubmission(ctx context.Context, submissionID uint) (models.ExperiencePointsRecord, error)
	Save(ctx context.Context, record *models.ExperiencePointsRecord) error
}

type experiencePointsRepository struct {
	db *gorm.DB
}

// NewExperiencePointsRepository instantiates the repository.
func NewExperiencePointsRepository(db *gorm.DB) ExperiencePointsRepository {
	return &experiencePointsRepository{db: db}
}

func (r *experiencePointsRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.ExperiencePointsRecord, error) {
	var record models.ExperiencePointsRecord
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&record).Error; err != nil {
		return models.ExperiencePointsRecord{}, err
	}

	return record, nil
}

func (r *experiencePointsRepository) Save(ctx context.Context, record *models.ExperiencePointsRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
