package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"helpdesk-collab/backend/internal/models"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	ListByTicket(ctx context.Context, ticketID uint, page, limit int) ([]models.Message, int64, error)
	UpdateFeedback(ctx context.Context, id uint, feedback models.Feedback) error
}

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message %d: %w", id, err)
	}
	return &message, nil
}

func (r *gormMessageRepository) ListByTicket(ctx context.Context, ticketID uint, page, limit int) ([]models.Message, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Message{}).Where("ticket_id = ?", ticketID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	err := q.Order("timestamp ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages for ticket %d: %w", ticketID, err)
	}
	return messages, total, nil
}

func (r *gormMessageRepository) UpdateFeedback(ctx context.Context, id uint, feedback models.Feedback) error {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update("feedback", feedback)
	if result.Error != nil {
		return fmt.Errorf("failed to update feedback on message %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
