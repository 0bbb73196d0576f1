package models

import (
	"time"

	"gorm.io/gorm"
)

// Step log outcomes
const (
	StepStatusSent    = "sent"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)

// Lifecycle log states
const (
	LifecycleStatusPending = "pending"
	LifecycleStatusSent    = "sent"
)

// StepLog is an append-only record of one executed sequence step
type StepLog struct {
	gorm.Model
	EnrollmentID uint `gorm:"not null;index" json:"enrollment_id"`
	SequenceID   uint `gorm:"not null;index" json:"sequence_id"`
	LeadID       uint `gorm:"not null;index" json:"lead_id"`
	UserID       uint `gorm:"not null;index" json:"user_id"`

	StepIndex int     `json:"step_index"`
	Channel   Channel `gorm:"type:varchar(20)" json:"channel"`
	Subject   string  `json:"subject"`
	Body      string  `gorm:"type:text" json:"body"`

	Status     string     `gorm:"not null;index" json:"status"` // sent, failed, skipped
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	MessageID  string     `gorm:"index" json:"message_id,omitempty"`
	TrackingID string     `gorm:"type:varchar(64);index" json:"-"`
	ExecutedAt time.Time  `gorm:"not null" json:"executed_at"`
	OpenedAt   *time.Time `json:"opened_at"`
}

func (StepLog) TableName() string {
	return "sequence_step_logs"
}

// LifecycleEmailLog marks a lifecycle email as sent to a profile
type LifecycleEmailLog struct {
	gorm.Model
	ProfileID  uint   `gorm:"not null;uniqueIndex:idx_lifecycle_once,priority:1" json:"profile_id"`
	Template   string `gorm:"type:varchar(40);not null;uniqueIndex:idx_lifecycle_once,priority:2" json:"template"`
	OffsetDays int    `gorm:"not null;uniqueIndex:idx_lifecycle_once,priority:3" json:"offset_days"`

	Status    string     `gorm:"not null" json:"status"` // pending, sent
	MessageID string     `json:"message_id,omitempty"`
	SentAt    *time.Time `json:"sent_at"`
}
