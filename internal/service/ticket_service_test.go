package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/logger"
)

type memTicketRepo struct {
	tickets    map[uint]*models.Ticket
	lastFilter repository.TicketFilter
}

func newMemTicketRepo(tickets ...*models.Ticket) *memTicketRepo {
	repo := &memTicketRepo{tickets: make(map[uint]*models.Ticket)}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
	}
	return repo
}

func (r *memTicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	t.ID = uint(len(r.tickets) + 1)
	r.tickets[t.ID] = t
	return nil
}

func (r *memTicketRepo) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	t, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTicketRepo) Update(ctx context.Context, t *models.Ticket) error {
	r.tickets[t.ID] = t
	return nil
}

func (r *memTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, int64, error) {
	r.lastFilter = filter
	return nil, 0, nil
}

type recordingClosedHook struct {
	closed []uint
}

func (h *recordingClosedHook) OnTicketClosed(ctx context.Context, t *models.Ticket) {
	h.closed = append(h.closed, t.ID)
}

func deptPtr(d models.Department) *models.Department { return &d }

func strPtr(s string) *string { return &s }

func uintPtr(u uint) *uint { return &u }

func statusPtr(s models.TicketStatus) *models.TicketStatus { return &s }

func testTicketService(repo repository.TicketRepository, hook TicketClosedHook) *TicketService {
	return NewTicketService(repo, nil, hook, logger.New(logger.DefaultConfig()))
}

func TestTicketServiceReadScope(t *testing.T) {
	itTicket := &models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentIT)}
	hrTicket := &models.Ticket{ID: 2, OwnerID: 11, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentHR)}
	crossAssigned := &models.Ticket{ID: 3, OwnerID: 12, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentHR), AssigneeID: uintPtr(20)}
	svc := testTicketService(newMemTicketRepo(itTicket, hrTicket, crossAssigned), nil)

	tests := []struct {
		name     string
		actor    Actor
		ticketID uint
		allowed  bool
	}{
		{"owner reads own", Actor{UserID: 10, Role: models.RoleUser}, 1, true},
		{"user denied on foreign ticket", Actor{UserID: 10, Role: models.RoleUser}, 2, false},
		{"it agent reads it ticket", Actor{UserID: 20, Role: models.RoleITAgent}, 1, true},
		{"it agent denied on hr ticket", Actor{UserID: 20, Role: models.RoleITAgent}, 2, false},
		{"assignee reads outside department", Actor{UserID: 20, Role: models.RoleITAgent}, 3, true},
		{"hr agent reads hr ticket", Actor{UserID: 30, Role: models.RoleHRAgent}, 2, true},
		{"admin reads everything", Actor{UserID: 1, Role: models.RoleAdmin}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetTicket(context.Background(), tt.actor, tt.ticketID)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsAuthorization(err), "expected authorization error, got %v", err)
			}
		})
	}
}

func TestTicketServiceGetTicketNotFound(t *testing.T) {
	svc := testTicketService(newMemTicketRepo(), nil)
	_, err := svc.GetTicket(context.Background(), Actor{UserID: 1, Role: models.RoleAdmin}, 99)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTicketServiceListScope(t *testing.T) {
	repo := newMemTicketRepo()
	svc := testTicketService(repo, nil)
	ctx := context.Background()

	_, _, err := svc.ListTickets(ctx, Actor{UserID: 10, Role: models.RoleUser}, ListTicketsInput{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.OwnerID)
	assert.Equal(t, uint(10), *repo.lastFilter.OwnerID)
	assert.Nil(t, repo.lastFilter.Visibility)

	_, _, err = svc.ListTickets(ctx, Actor{UserID: 20, Role: models.RoleITAgent}, ListTicketsInput{Search: "vpn"})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Visibility)
	assert.Equal(t, models.DepartmentIT, repo.lastFilter.Visibility.Department)
	assert.Equal(t, uint(20), repo.lastFilter.Visibility.AgentID)
	assert.Equal(t, "vpn", repo.lastFilter.Search)

	_, _, err = svc.ListTickets(ctx, Actor{UserID: 1, Role: models.RoleAdmin}, ListTicketsInput{})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.OwnerID)
	assert.Nil(t, repo.lastFilter.Visibility)
}

func TestTicketServiceUpdateTransition(t *testing.T) {
	repo := newMemTicketRepo(&models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentIT)})
	svc := testTicketService(repo, nil)
	agent := Actor{UserID: 20, Role: models.RoleITAgent}

	updated, err := svc.UpdateTicket(context.Background(), agent, 1, UpdateTicketInput{Status: statusPtr(models.StatusResolved)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)

	// Resolved cannot jump back to open.
	_, err = svc.UpdateTicket(context.Background(), agent, 1, UpdateTicketInput{Status: statusPtr(models.StatusOpen)})
	var transErr *models.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, models.StatusResolved, repo.tickets[1].Status, "failed transition must not persist")
}

func TestTicketServiceCloseFiresHookOnce(t *testing.T) {
	repo := newMemTicketRepo(&models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusResolved, Department: deptPtr(models.DepartmentIT)})
	hook := &recordingClosedHook{}
	svc := testTicketService(repo, hook)
	agent := Actor{UserID: 20, Role: models.RoleITAgent}

	closed, err := svc.UpdateTicket(context.Background(), agent, 1, UpdateTicketInput{Status: statusPtr(models.StatusClosed)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, []uint{1}, hook.closed)

	// A second close fails the transition check and never re-fires the hook.
	_, err = svc.UpdateTicket(context.Background(), agent, 1, UpdateTicketInput{Status: statusPtr(models.StatusClosed)})
	require.Error(t, err)
	assert.Equal(t, []uint{1}, hook.closed)
}

func TestTicketServiceSameStatusIsRejected(t *testing.T) {
	repo := newMemTicketRepo(&models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentIT)})
	svc := testTicketService(repo, nil)

	// Requesting the state the ticket is already in is not a transition the
	// table allows; it must fail like any other invalid move.
	_, err := svc.UpdateTicket(context.Background(), Actor{UserID: 20, Role: models.RoleITAgent}, 1, UpdateTicketInput{Status: statusPtr(models.StatusAssigned)})
	var transErr *models.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, models.StatusAssigned, transErr.From)
	assert.Equal(t, models.StatusAssigned, transErr.To)
	assert.Equal(t, models.StatusAssigned, repo.tickets[1].Status)
}

func TestTicketServiceEmptyUpdateIsNoOp(t *testing.T) {
	repo := newMemTicketRepo(&models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusOpen, Title: "before"})
	hook := &recordingClosedHook{}
	svc := testTicketService(repo, hook)

	got, err := svc.UpdateTicket(context.Background(), Actor{UserID: 10, Role: models.RoleUser}, 1, UpdateTicketInput{})
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title)
	assert.Empty(t, hook.closed)
}

func TestTicketServiceUserUpdateRestrictions(t *testing.T) {
	openTicket := &models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusOpen}
	assignedTicket := &models.Ticket{ID: 2, OwnerID: 10, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentIT)}
	svc := testTicketService(newMemTicketRepo(openTicket, assignedTicket), nil)
	owner := Actor{UserID: 10, Role: models.RoleUser}
	ctx := context.Background()

	got, err := svc.UpdateTicket(ctx, owner, 1, UpdateTicketInput{Title: strPtr("clearer title")})
	require.NoError(t, err)
	assert.Equal(t, "clearer title", got.Title)

	// Owners cannot touch workflow fields.
	_, err = svc.UpdateTicket(ctx, owner, 1, UpdateTicketInput{Status: statusPtr(models.StatusResolved)})
	assert.True(t, apperrors.IsAuthorization(err))

	// Once the ticket left open, the owner's edit window is over.
	_, err = svc.UpdateTicket(ctx, owner, 2, UpdateTicketInput{Title: strPtr("too late")})
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestTicketServiceAgentCannotReassign(t *testing.T) {
	repo := newMemTicketRepo(&models.Ticket{ID: 1, OwnerID: 10, Status: models.StatusAssigned, Department: deptPtr(models.DepartmentIT)})
	svc := testTicketService(repo, nil)

	_, err := svc.UpdateTicket(context.Background(), Actor{UserID: 20, Role: models.RoleITAgent}, 1, UpdateTicketInput{AssigneeID: uintPtr(21)})
	assert.True(t, apperrors.IsAuthorization(err))

	got, err := svc.UpdateTicket(context.Background(), Actor{UserID: 1, Role: models.RoleAdmin}, 1, UpdateTicketInput{AssigneeID: uintPtr(21)})
	require.NoError(t, err)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, uint(21), *got.AssigneeID)
}
