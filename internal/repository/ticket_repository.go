package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"helpdesk-collab/backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

// AgentVisibility scopes a ticket query to what an agent may see: tickets in
// their department plus tickets assigned directly to them.
type AgentVisibility struct {
	Department models.Department
	AgentID    uint
}

// TicketFilter composes the read scope with caller-supplied filters. Exactly
// one of OwnerID/Visibility is set for non-admin callers; both nil means an
// unrestricted (admin) query.
type TicketFilter struct {
	OwnerID    *uint
	Visibility *AgentVisibility
	Status     *models.TicketStatus
	Department *models.Department
	Search     string
	Page       int
	Limit      int
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id uint) (*models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	List(ctx context.Context, filter TicketFilter) ([]models.Ticket, int64, error)
}

type gormTicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &gormTicketRepository{db: db}
}

func (r *gormTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *gormTicketRepository) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket %d: %w", id, err)
	}
	return &ticket, nil
}

func (r *gormTicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	if err := r.db.WithContext(ctx).Save(ticket).Error; err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", ticket.ID, err)
	}
	return nil
}

func (r *gormTicketRepository) List(ctx context.Context, filter TicketFilter) ([]models.Ticket, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Ticket{})

	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Visibility != nil {
		q = q.Where("department = ? OR assignee_id = ?",
			filter.Visibility.Department, filter.Visibility.AgentID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Department != nil {
		q = q.Where("department = ?", *filter.Department)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var tickets []models.Ticket
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, total, nil
}
