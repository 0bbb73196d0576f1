package models

import (
	"time"

	"gorm.io/gorm"
)

// Plans a profile can be on
const (
	PlanTrial     = "trial"
	PlanActive    = "active"
	PlanCancelled = "cancelled"
	PlanExpired   = "expired"
)

// Profile represents a user account; CreatedAt is the signup time
type Profile struct {
	gorm.Model

	Email     string `gorm:"index;not null" json:"email"`
	FirstName string `json:"first_name"`
	Company   string `json:"company"`

	// Billing lifecycle
	Plan        string     `gorm:"default:'trial';index" json:"plan"` // trial, active, cancelled, expired
	TrialEndsAt *time.Time `json:"trial_ends_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	// Outreach sender settings
	SenderName     string `json:"sender_name"`
	SenderEmail    string `json:"sender_email"`
	ReplyTo        string `json:"reply_to"`
	EmailSignature string `gorm:"type:text" json:"email_signature"`
}
