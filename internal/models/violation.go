package models

import (
	"time"
)

// ViolationType classifies why content was rejected.
type ViolationType string

const (
	ViolationNone          ViolationType = "none"
	ViolationProfanity     ViolationType = "profanity"
	ViolationSpam          ViolationType = "spam"
	ViolationInappropriate ViolationType = "inappropriate"
)

func (vt ViolationType) IsValid() bool {
	switch vt {
	case ViolationProfanity, ViolationSpam, ViolationInappropriate:
		return true
	}
	return false
}

// Severity ranks a violation for downstream review.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ReviewState tracks whether a human has looked at a violation yet.
type ReviewState string

const (
	ReviewPending   ReviewState = "pending"
	ReviewReviewed  ReviewState = "reviewed"
	ReviewDismissed ReviewState = "dismissed"
)

// Violation records a ticket-creation attempt rejected by the content
// safety gate. One row per rejection; never written for accepted tickets.
type Violation struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"index" json:"user_id"`
	Type        ViolationType `gorm:"size:16" json:"type"`
	Severity    Severity      `gorm:"size:8" json:"severity"`
	Title       string        `gorm:"size:200" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Reason      string        `gorm:"type:text" json:"reason"`
	Confidence  float64       `json:"confidence"`
	ReviewState ReviewState   `gorm:"size:12;default:pending" json:"review_state"`
	CreatedAt   time.Time     `json:"created_at"`
}
