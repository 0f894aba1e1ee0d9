package service

import (
	"context"
	"errors"
	"fmt"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/logger"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID uint
	Role   models.Role
}

// TicketCache is the read cache in front of GetTicket. A nil cache disables
// caching without changing behavior.
type TicketCache interface {
	GetTicket(ctx context.Context, id uint) (*models.Ticket, bool)
	SetTicket(ctx context.Context, ticket *models.Ticket)
	Invalidate(ctx context.Context, id uint)
}

// TicketClosedHook is fired exactly once when a ticket reaches closed.
type TicketClosedHook interface {
	OnTicketClosed(ctx context.Context, ticket *models.Ticket)
}

// ListTicketsInput carries caller-supplied filters for ticket listing. The
// role-derived scope is composed on top of these and cannot be widened by
// the caller.
type ListTicketsInput struct {
	Status     *models.TicketStatus
	Department *models.Department
	Search     string
	Page       int
	Limit      int
}

// UpdateTicketInput is a partial update: nil fields are left untouched. An
// update with every field nil succeeds without writing anything.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Urgency     *models.Urgency
	Status      *models.TicketStatus
	Department  *models.Department
	AssigneeID  *uint
	Feedback    *string
}

func (in UpdateTicketInput) isEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Urgency == nil &&
		in.Status == nil && in.Department == nil && in.AssigneeID == nil &&
		in.Feedback == nil
}

// TicketService enforces the ticket role matrix and the status transition
// table on every read and mutation.
type TicketService struct {
	tickets    repository.TicketRepository
	cache      TicketCache
	closedHook TicketClosedHook
	log        *logger.Logger
}

func NewTicketService(tickets repository.TicketRepository, cache TicketCache, closedHook TicketClosedHook, log *logger.Logger) *TicketService {
	return &TicketService{
		tickets:    tickets,
		cache:      cache,
		closedHook: closedHook,
		log:        log.WithComponent("ticket_service"),
	}
}

// GetTicket returns the ticket if the actor's read scope covers it.
func (s *TicketService) GetTicket(ctx context.Context, actor Actor, id uint) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, ticket) {
		return nil, apperrors.NewAuthorizationError("you do not have access to this ticket")
	}
	return ticket, nil
}

// ListTickets composes the actor's role scope with the caller's filters.
func (s *TicketService) ListTickets(ctx context.Context, actor Actor, in ListTicketsInput) ([]models.Ticket, int64, error) {
	filter := repository.TicketFilter{
		Status:     in.Status,
		Department: in.Department,
		Search:     in.Search,
		Page:       in.Page,
		Limit:      in.Limit,
	}

	switch actor.Role {
	case models.RoleAdmin:
		// unrestricted
	case models.RoleITAgent, models.RoleHRAgent:
		dep, _ := actor.Role.AgentDepartment()
		filter.Visibility = &repository.AgentVisibility{Department: dep, AgentID: actor.UserID}
	case models.RoleUser:
		owner := actor.UserID
		filter.OwnerID = &owner
	default:
		return nil, 0, apperrors.NewAuthorizationError("unknown role")
	}

	return s.tickets.List(ctx, filter)
}

// UpdateTicket applies a partial update under the role matrix. Status changes
// go through the transition table; a close fires the summarization hook once,
// after the new state is durably stored.
func (s *TicketService) UpdateTicket(ctx context.Context, actor Actor, id uint, in UpdateTicketInput) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeUpdate(actor, ticket, in); err != nil {
		return nil, err
	}
	if in.isEmpty() {
		return ticket, nil
	}

	closing := false
	if in.Status != nil {
		// Self-transitions are not in the table; re-requesting a state the
		// ticket is already in (including a second close) must fail.
		if err := ticket.ChangeStatus(*in.Status); err != nil {
			return nil, err
		}
		closing = ticket.Status.IsClosed()
	}
	if in.Title != nil {
		ticket.Title = *in.Title
	}
	if in.Description != nil {
		ticket.Description = *in.Description
	}
	if in.Urgency != nil {
		if !in.Urgency.IsValid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid urgency: %s", *in.Urgency))
		}
		ticket.Urgency = *in.Urgency
	}
	if in.Department != nil {
		if !in.Department.IsValid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid department: %s", *in.Department))
		}
		ticket.Department = in.Department
	}
	if in.AssigneeID != nil {
		ticket.AssigneeID = in.AssigneeID
	}
	if in.Feedback != nil {
		ticket.Feedback = in.Feedback
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, ticket.ID)
	}

	if closing {
		s.log.Info("Ticket closed", "ticket_id", ticket.ID, "code", ticket.Code, "actor_id", actor.UserID)
		if s.closedHook != nil {
			s.closedHook.OnTicketClosed(ctx, ticket)
		}
	}
	return ticket, nil
}

// CanRead exposes the read-scope check for collaborators that gate access to
// a ticket's room or message history.
func (s *TicketService) CanRead(actor Actor, ticket *models.Ticket) bool {
	return s.canRead(actor, ticket)
}

func (s *TicketService) load(ctx context.Context, id uint) (*models.Ticket, error) {
	if s.cache != nil {
		if ticket, ok := s.cache.GetTicket(ctx, id); ok {
			return ticket, nil
		}
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("TICKET_NOT_FOUND", "ticket not found")
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetTicket(ctx, ticket)
	}
	return ticket, nil
}

func (s *TicketService) canRead(actor Actor, ticket *models.Ticket) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleITAgent, models.RoleHRAgent:
		dep, _ := actor.Role.AgentDepartment()
		if ticket.Department != nil && *ticket.Department == dep {
			return true
		}
		return ticket.AssigneeID != nil && *ticket.AssigneeID == actor.UserID
	case models.RoleUser:
		return ticket.OwnerID == actor.UserID
	}
	return false
}

func (s *TicketService) authorizeUpdate(actor Actor, ticket *models.Ticket, in UpdateTicketInput) error {
	if !s.canRead(actor, ticket) {
		return apperrors.NewAuthorizationError("you do not have access to this ticket")
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleITAgent, models.RoleHRAgent:
		if in.AssigneeID != nil {
			return apperrors.NewAuthorizationError("only admins may reassign tickets")
		}
		return nil
	case models.RoleUser:
		if ticket.Status != models.StatusOpen {
			return apperrors.NewAuthorizationError("tickets can only be edited by their owner while open")
		}
		if in.Status != nil || in.Department != nil || in.AssigneeID != nil || in.Feedback != nil {
			return apperrors.NewAuthorizationError("users may only edit title, description and urgency")
		}
		return nil
	}
	return apperrors.NewAuthorizationError("unknown role")
}
