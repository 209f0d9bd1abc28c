package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// CourseUserRepository resolves course membership and roles.
type CourseUserRepository interface {
	GetMember(ctx context.Context, courseID, userID uint) (models.CourseUser, error)
}

type courseUserRepository struct {
	db *gorm.DB
}

// NewCourseUserRepository instantiates the repository.
func NewCourseUserRepository(db *gorm.DB) CourseUserRepository {
	return &courseUserRepository{db: db}
}

func (r *courseUserRepository) GetMember(ctx context.Context, courseID, userID uint) (models.CourseUser, error) {
	var member models.CourseUser
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Where("user_id = ?", userID).
		First(&member).Error; err != nil {
		return models.CourseUser{}, err
	}

	return member, nil
}
