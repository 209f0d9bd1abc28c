package models

import "time"

// Course membership roles. Only students generate submission notifications;
// staff and observer attempts are administrative and stay quiet.
const (
	CourseRoleStudent  = "student"
	CourseRoleTeacher  = "teacher"
	CourseRoleObserver = "observer"
)

// CourseUser links a platform user to a course with a role.
type CourseUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index:idx_course_users_course_user,unique;not null" json:"course_id"`
	UserID    uint      `gorm:"index:idx_course_users_course_user,unique;not null" json:"user_id"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsStudent reports whether the member participates as a learner.
func (u CourseUser) IsStudent() bool {
	return u.Role == CourseRoleStudent
}
