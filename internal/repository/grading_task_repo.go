package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// GradingTaskRepository defines data operations for the grading outbox.
type GradingTaskRepository interface {
	Create(ctx context.Context, task *models.GradingTask) error
	GetByHandle(ctx context.Context, handle string) (models.GradingTask, error)
	MarkDispatched(ctx context.Context, handle string) error
	Resolve(ctx context.Context, handle, status, errorMessage string) error
	ListPending(ctx context.Context, limit int) ([]models.GradingTask, error)
}

type gradingTaskRepository struct {
	db *gorm.DB
}

// NewGradingTaskRepository instantiates the repository.
func NewGradingTaskRepository(db *gorm.DB) GradingTaskRepository {
	return &gradingTaskRepository{db: db}
}

func (r *gradingTaskRepository) Create(ctx context.Context, task *models.GradingTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *gradingTaskRepository) GetByHandle(ctx context.Context, handle string) (models.GradingTask, error) {
	var task models.GradingTask
	if err := r.db.WithContext(ctx).
		Where("handle = ?", handle).
		First(&task).Error; err != nil {
		return models.GradingTask{}, err
	}

	return task, nil
}

func (r *gradingTaskRepository) MarkDispatched(ctx context.Context, handle string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.GradingTask{}).
		Where("handle = ?", handle).
		Where("status = ?", models.GradingTaskStatusPending).
		Updates(map[string]interface{}{
			"status":        models.GradingTaskStatusDispatched,
			"dispatched_at": now,
		}).Error
}

func (r *gradingTaskRepository) Resolve(ctx context.Context, handle, status, errorMessage string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.GradingTask{}).
		Where("handle = ?", handle).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errorMessage,
			"resolved_at": now,
		}).Error
}

// ListPending returns tasks whose dispatch never happened, oldest first, so
// a recovery sweep can flush them after a crash between commit and publish.
func (r *gradingTaskRepository) ListPending(ctx context.Context, limit int) ([]models.GradingTask, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", models.GradingTaskStatusPending).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var tasks []models.GradingTask
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}
