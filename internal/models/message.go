package models

import (
	"time"
)

// MessageType identifies who authored a chat message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAgent  MessageType = "agent"
	MessageTypeSystem MessageType = "system"
)

func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeUser, MessageTypeAgent, MessageTypeSystem:
		return true
	}
	return false
}

// Feedback is the reader reaction on a message. It is the only field that
// may change after a message is persisted.
type Feedback string

const (
	FeedbackNone Feedback = "none"
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

func (f Feedback) IsValid() bool {
	switch f {
	case FeedbackNone, FeedbackUp, FeedbackDown:
		return true
	}
	return false
}

// Message is one chat line inside a ticket's conversation.
type Message struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	TicketID   uint        `gorm:"index" json:"ticket_id"`
	SenderID   uint        `gorm:"index" json:"sender_id"`
	SenderRole Role        `gorm:"size:16" json:"sender_role"`
	Type       MessageType `gorm:"size:10" json:"type"`
	Content    string      `gorm:"type:text" json:"content"`
	IsAI       bool        `gorm:"default:false" json:"is_ai"`
	Feedback   Feedback    `gorm:"size:8;default:none" json:"feedback"`
	Timestamp  time.Time   `json:"timestamp"`
	CreatedAt  time.Time   `json:"created_at"`
}
