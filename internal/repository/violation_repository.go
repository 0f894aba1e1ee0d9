package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"helpdesk-collab/backend/internal/models"
)

type ViolationRepository interface {
	Create(ctx context.Context, violation *models.Violation) error
	ListByUser(ctx context.Context, userID uint) ([]models.Violation, error)
}

type gormViolationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &gormViolationRepository{db: db}
}

func (r *gormViolationRepository) Create(ctx context.Context, violation *models.Violation) error {
	if err := r.db.WithContext(ctx).Create(violation).Error; err != nil {
		return fmt.Errorf("failed to create violation: %w", err)
	}
	return nil
}

func (r *gormViolationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Violation, error) {
	var violations []models.Violation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&violations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list violations for user %d: %w", userID, err)
	}
	return violations, nil
}
