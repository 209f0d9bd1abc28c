package models

import "time"

// ExperiencePointsRecord is the points-ledger entry linked one-to-one with a
// submission. The submission creator must match UserID; unsubmitting clears
// PointsAwarded.
type ExperiencePointsRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"uniqueIndex;not null" json:"submission_id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	PointsAwarded *int      `json:"points_awarded"`
	Reason        string    `gorm:"size:255" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
