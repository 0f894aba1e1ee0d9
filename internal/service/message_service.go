package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
	"helpdesk-collab/backend/pkg/ws"
)

const maxMessageLen = 1000

// Broadcaster fans a frame out to the members of a ticket room.
// excludeUserID 0 excludes nobody.
type Broadcaster interface {
	BroadcastToRoom(ticketID uint, frame ws.ServerFrame, excludeUserID uint)
}

// MessageSentHook is fired after a message has been persisted and broadcast.
type MessageSentHook interface {
	OnMessageSent(ctx context.Context, msg *models.Message)
}

// SendMessageInput is a chat message as submitted over HTTP or the socket.
type SendMessageInput struct {
	TicketID uint
	Content  string
	Type     models.MessageType
	IsAI     bool
}

// MessageService persists and delivers ticket chat messages. Persistence is
// the only mandatory step: a message that could not be stored is never
// broadcast, and broadcast or hook failures never fail the send.
type MessageService struct {
	messages    repository.MessageRepository
	tickets     *TicketService
	broadcaster Broadcaster
	sentHook    MessageSentHook
	metrics     *observability.Metrics
	log         *logger.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	tickets *TicketService,
	broadcaster Broadcaster,
	sentHook MessageSentHook,
	metrics *observability.Metrics,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		messages:    messages,
		tickets:     tickets,
		broadcaster: broadcaster,
		sentHook:    sentHook,
		metrics:     metrics,
		log:         log.WithComponent("message_service"),
	}
}

// SendChatMessage runs the delivery pipeline: authorize, validate, persist,
// broadcast, notify. No room member sees the message before the persistence
// call has returned.
func (s *MessageService) SendChatMessage(ctx context.Context, actor Actor, in SendMessageInput) (*models.Message, error) {
	if _, err := s.tickets.GetTicket(ctx, actor, in.TicketID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	if content == "" || utf8.RuneCountInString(content) > maxMessageLen {
		return nil, apperrors.NewValidationError(fmt.Sprintf("message content must be 1-%d characters", maxMessageLen))
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.MessageTypeUser
	}
	if !msgType.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid message type: %s", msgType))
	}

	message := &models.Message{
		TicketID:   in.TicketID,
		SenderID:   actor.UserID,
		SenderRole: actor.Role,
		Type:       msgType,
		Content:    content,
		IsAI:       in.IsAI,
		Feedback:   models.FeedbackNone,
		Timestamp:  time.Now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(in.TicketID, ws.NewMessageFrame(message), 0)
	}
	if s.metrics != nil {
		s.metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()
	}
	if s.sentHook != nil {
		s.sentHook.OnMessageSent(ctx, message)
	}
	return message, nil
}

// ListMessages returns a page of a ticket's history, oldest first, after the
// same read-scope check as the send path.
func (s *MessageService) ListMessages(ctx context.Context, actor Actor, ticketID uint, page, limit int) ([]models.Message, int64, error) {
	if _, err := s.tickets.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByTicket(ctx, ticketID, page, limit)
}

// SetFeedback records a reader's rating on a message. Setting the same value
// twice is a no-op success.
func (s *MessageService) SetFeedback(ctx context.Context, actor Actor, messageID uint, feedback models.Feedback) error {
	if !feedback.IsValid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid feedback value: %s", feedback))
	}

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("MESSAGE_NOT_FOUND", "message not found")
		}
		return err
	}
	if _, err := s.tickets.GetTicket(ctx, actor, message.TicketID); err != nil {
		return err
	}
	if message.Feedback == feedback {
		return nil
	}
	return s.messages.UpdateFeedback(ctx, messageID, feedback)
}
