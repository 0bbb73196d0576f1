package models

import (
	"time"

	"gorm.io/gorm"
)

// Sequence statuses
const (
	SequenceStatusDraft  = "draft"
	SequenceStatusActive = "active"
	SequenceStatusPaused = "paused"
)

// Enrollment statuses
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
)

// DefaultWaitDays applies when a step has no wait configured.
const DefaultWaitDays = 1

// Sequence represents an automated multi-step outreach sequence
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep represents one action in a sequence
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	Position int     `gorm:"not null" json:"position"` // 1-based
	Channel  Channel `gorm:"type:varchar(20);not null;default:'email'" json:"channel"`
	Subject  string  `json:"subject"`
	Body     string  `gorm:"type:text" json:"body"`
	WaitDays *int    `json:"wait_days"` // Days after the previous step
}

// Wait returns the delay before this step fires.
func (s SequenceStep) Wait() time.Duration {
	days := DefaultWaitDays
	if s.WaitDays != nil {
		days = *s.WaitDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Enrollment links one lead to one sequence and tracks its progress
type Enrollment struct {
	gorm.Model
	UserID     uint `gorm:"not null;index" json:"user_id"`
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	LeadID     uint `gorm:"not null;index" json:"lead_id"`

	Status      string     `gorm:"default:'active';index:idx_enrollment_due,priority:1" json:"status"` // active, completed
	CurrentStep int        `gorm:"default:0" json:"current_step"`                                      // 0-based index into steps
	NextStepAt  *time.Time `gorm:"index:idx_enrollment_due,priority:2" json:"next_step_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Claim markers set by the executor while it owns the row
	ClaimToken string     `gorm:"type:varchar(64);default:''" json:"-"`
	ClaimedAt  *time.Time `json:"-"`

	// Relations
	Sequence Sequence `json:"-"`
	Lead     Lead     `json:"-"`
}

func (Enrollment) TableName() string {
	return "sequence_enrollments"
}
