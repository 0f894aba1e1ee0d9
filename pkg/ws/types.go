package ws

import (
	"time"

	"helpdesk-collab/backend/internal/models"
)

// FrameType tags every frame on the real-time channel. The set is
// closed; dispatch switches over it and unknown types produce a typed
// error frame instead of falling into a silent default.
type FrameType string

// Client-to-server frame types.
const (
	FrameChat   FrameType = "chat"
	FrameTyping FrameType = "typing"
	FramePing   FrameType = "ping"
)

// Server-to-client frame types.
const (
	FrameConnectionEstablished FrameType = "connection_established"
	FrameNewMessage            FrameType = "new_message"
	FramePong                  FrameType = "pong"
	FrameError                 FrameType = "error"
	FrameUserJoined            FrameType = "user_joined"
	FrameUserLeft              FrameType = "user_left"
)

// Close codes for the real-time channel.
const (
	CloseInternalError = 4000
	CloseUnauthorized  = 4001
	CloseAccessDenied  = 4003
)

// ClientFrame is a frame read from a connected client.
type ClientFrame struct {
	Type        FrameType          `json:"type"`
	TicketID    uint               `json:"ticketId,omitempty"`
	Content     string             `json:"content,omitempty"`
	MessageType models.MessageType `json:"messageType,omitempty"`
	IsAI        bool               `json:"isAI,omitempty"`
	IsTyping    bool               `json:"isTyping,omitempty"`
}

// MessagePayload is the persisted message as broadcast to a room.
type MessagePayload struct {
	ID        uint               `json:"id"`
	TicketID  uint               `json:"ticketId"`
	SenderID  uint               `json:"senderId"`
	Role      models.Role        `json:"senderRole"`
	Type      models.MessageType `json:"messageType"`
	Content   string             `json:"content"`
	IsAI      bool               `json:"isAI"`
	Feedback  models.Feedback    `json:"feedback"`
	Timestamp time.Time          `json:"timestamp"`
}

// ErrorPayload carries a typed protocol error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerFrame is a frame written to a connected client.
type ServerFrame struct {
	Type         FrameType       `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	TicketID     uint            `json:"ticketId,omitempty"`
	UserID       uint            `json:"userId,omitempty"`
	Role         models.Role     `json:"role,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	IsTyping     bool            `json:"isTyping,omitempty"`
	Message      *MessagePayload `json:"message,omitempty"`
	Error        *ErrorPayload   `json:"error,omitempty"`
}

// ConnectionEstablishedFrame confirms a successful room join.
func ConnectionEstablishedFrame(connectionID string, ticketID uint) ServerFrame {
	return ServerFrame{
		Type:         FrameConnectionEstablished,
		ConnectionID: connectionID,
		TicketID:     ticketID,
	}
}

// NewMessageFrame wraps a persisted message for room delivery.
func NewMessageFrame(m *models.Message) ServerFrame {
	return ServerFrame{
		Type:     FrameNewMessage,
		TicketID: m.TicketID,
		Message: &MessagePayload{
			ID:        m.ID,
			TicketID:  m.TicketID,
			SenderID:  m.SenderID,
			Role:      m.SenderRole,
			Type:      m.Type,
			Content:   m.Content,
			IsAI:      m.IsAI,
			Feedback:  m.Feedback,
			Timestamp: m.Timestamp,
		},
	}
}

// TypingFrame relays a typing indicator to the rest of a room.
func TypingFrame(ticketID, userID uint, isTyping bool) ServerFrame {
	return ServerFrame{Type: FrameTyping, TicketID: ticketID, UserID: userID, IsTyping: isTyping}
}

// PongFrame answers a client ping.
func PongFrame() ServerFrame {
	return ServerFrame{Type: FramePong}
}

// ErrorFrame reports a protocol or request error without closing the socket.
func ErrorFrame(code, message string) ServerFrame {
	return ServerFrame{Type: FrameError, Error: &ErrorPayload{Code: code, Message: message}}
}

// UserJoinedFrame notifies a room that a participant connected.
func UserJoinedFrame(ticketID, userID uint, role models.Role) ServerFrame {
	return ServerFrame{Type: FrameUserJoined, TicketID: ticketID, UserID: userID, Role: role}
}

// UserLeftFrame notifies a room that a participant disconnected.
func UserLeftFrame(ticketID, userID uint, reason string) ServerFrame {
	return ServerFrame{Type: FrameUserLeft, TicketID: ticketID, UserID: userID, Reason: reason}
}
