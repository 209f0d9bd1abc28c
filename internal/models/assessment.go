package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment represents an exam or quiz that learners attempt.
type Assessment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CourseID   uint       `gorm:"index;not null" json:"course_id"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Autograded bool       `gorm:"not null;default:false" json:"autograded"`
	BasePoints int        `gorm:"not null;default:0" json:"base_points"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Questions  []Question `json:"questions"`
}

// HasQuestions reports whether the assessment can be attempted at all.
func (a Assessment) HasQuestions() bool {
	return len(a.Questions) > 0
}

// Question represents a single question within an assessment. Kind selects
// the grading capability; Options carries per-kind configuration such as the
// correct choice set or solution keywords.
type Question struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssessmentID uint           `gorm:"index;not null" json:"assessment_id"`
	Kind         string         `gorm:"size:64;not null" json:"kind"`
	Title        string         `gorm:"size:255" json:"title"`
	MaxGrade     float64        `gorm:"not null;default:0" json:"max_grade"`
	Position     int            `gorm:"not null;default:0" json:"position"`
	Options      datatypes.JSON `gorm:"type:json" json:"options"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
