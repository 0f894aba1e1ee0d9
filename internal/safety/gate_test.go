package safety

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	"helpdesk-collab/backend/pkg/logger"
)

type fakeClassifier struct {
	verdict *Verdict
	err     error
}

func (f *fakeClassifier) Classify(ctx context.Context, title, description string) (*Verdict, error) {
	return f.verdict, f.err
}

type fakeRouter struct {
	department *models.Department
	err        error
}

func (f *fakeRouter) Assign(ctx context.Context, title, description string) (*models.Department, error) {
	return f.department, f.err
}

type fakeTicketRepo struct {
	created   []*models.Ticket
	createErr error
}

func (f *fakeTicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	if f.createErr != nil {
		return f.createErr
	}
	t.ID = uint(len(f.created) + 1)
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeTicketRepo) Update(ctx context.Context, t *models.Ticket) error { return nil }

func (f *fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, int64, error) {
	return nil, 0, nil
}

type fakeViolationRepo struct {
	created   []*models.Violation
	createErr error
}

func (f *fakeViolationRepo) Create(ctx context.Context, v *models.Violation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, v)
	return nil
}

func (f *fakeViolationRepo) ListByUser(ctx context.Context, userID uint) ([]models.Violation, error) {
	return nil, nil
}

func newTestGate(c Classifier, r DepartmentRouter, tickets *fakeTicketRepo, violations *fakeViolationRepo) *Gate {
	return NewGate(c, r, tickets, violations, Limits{}, nil, logger.New(logger.DefaultConfig()))
}

func safeClassifier() *fakeClassifier {
	return &fakeClassifier{verdict: &Verdict{IsHarmful: false}}
}

func TestGateSubmitSafeTicketWithDepartment(t *testing.T) {
	it := models.DepartmentIT
	tickets := &fakeTicketRepo{}
	violations := &fakeViolationRepo{}
	gate := newTestGate(safeClassifier(), &fakeRouter{department: &it}, tickets, violations)

	ticket, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "VPN keeps disconnecting",
		Description: "Drops every few minutes since this morning.",
		Urgency:     models.UrgencyHigh,
		OwnerID:     7,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAssigned, ticket.Status)
	require.NotNil(t, ticket.Department)
	assert.Equal(t, models.DepartmentIT, *ticket.Department)
	assert.Equal(t, uint(7), ticket.OwnerID)
	assert.False(t, ticket.MisuseFlag)
	assert.True(t, strings.HasPrefix(ticket.Code, "HD-"))
	assert.Len(t, tickets.created, 1)
	assert.Empty(t, violations.created)
}

func TestGateSubmitSafeTicketNoDepartment(t *testing.T) {
	tickets := &fakeTicketRepo{}
	gate := newTestGate(safeClassifier(), &fakeRouter{department: nil}, tickets, &fakeViolationRepo{})

	ticket, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "General question",
		Description: "Where do I find the expense policy?",
		Urgency:     models.UrgencyLow,
		OwnerID:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Nil(t, ticket.Department)
}

func TestGateSubmitFlaggedContent(t *testing.T) {
	classifier := &fakeClassifier{verdict: &Verdict{
		IsHarmful:   true,
		Confidence:  0.95,
		Reason:      "detected abusive language",
		ContentType: models.ViolationProfanity,
	}}
	tickets := &fakeTicketRepo{}
	violations := &fakeViolationRepo{}
	gate := newTestGate(classifier, &fakeRouter{}, tickets, violations)

	_, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "bad title",
		Description: "bad description",
		Urgency:     models.UrgencyLow,
		OwnerID:     9,
	})

	var flagged *ContentFlaggedError
	require.ErrorAs(t, err, &flagged)
	assert.Equal(t, models.ViolationProfanity, flagged.ContentType)
	assert.NotEmpty(t, flagged.UserMessage)
	assert.NotContains(t, flagged.UserMessage, "detected abusive language",
		"classifier reason must not leak to the user")

	assert.Empty(t, tickets.created, "no ticket row on rejection")
	require.Len(t, violations.created, 1)
	v := violations.created[0]
	assert.Equal(t, models.SeverityHigh, v.Severity)
	assert.Equal(t, models.ReviewPending, v.ReviewState)
	assert.Equal(t, "detected abusive language", v.Reason)
}

func TestGateSeverityDerivation(t *testing.T) {
	tests := []struct {
		name    string
		verdict Verdict
		want    models.Severity
	}{
		{"high confidence", Verdict{Confidence: 0.9, ContentType: models.ViolationSpam}, models.SeverityHigh},
		{"profanity at low confidence", Verdict{Confidence: 0.2, ContentType: models.ViolationProfanity}, models.SeverityHigh},
		{"medium confidence", Verdict{Confidence: 0.7, ContentType: models.ViolationInappropriate}, models.SeverityMedium},
		{"low confidence", Verdict{Confidence: 0.69, ContentType: models.ViolationSpam}, models.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.verdict
			assert.Equal(t, tt.want, deriveSeverity(&v))
		})
	}
}

func TestGateViolationPersistFailureStillRejects(t *testing.T) {
	classifier := &fakeClassifier{verdict: &Verdict{
		IsHarmful:   true,
		Confidence:  0.5,
		ContentType: models.ViolationSpam,
	}}
	violations := &fakeViolationRepo{createErr: errors.New("db down")}
	tickets := &fakeTicketRepo{}
	gate := newTestGate(classifier, &fakeRouter{}, tickets, violations)

	_, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "spam",
		Description: "spam spam",
		Urgency:     models.UrgencyLow,
		OwnerID:     1,
	})

	var flagged *ContentFlaggedError
	require.ErrorAs(t, err, &flagged)
	assert.Empty(t, tickets.created)
}

func TestGateClassifierFailureFailsSafe(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("timeout")}
	router := &fakeRouter{err: errors.New("timeout")}
	tickets := &fakeTicketRepo{}
	gate := newTestGate(classifier, router, tickets, &fakeViolationRepo{})

	ticket, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "printer jam",
		Description: "third floor printer is jammed again",
		Urgency:     models.UrgencyMedium,
		OwnerID:     4,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Nil(t, ticket.Department)
	assert.Len(t, tickets.created, 1)
}

func TestGateValidation(t *testing.T) {
	gate := newTestGate(safeClassifier(), &fakeRouter{}, &fakeTicketRepo{}, &fakeViolationRepo{})

	tests := []struct {
		name string
		in   SubmitInput
	}{
		{"empty title", SubmitInput{Description: "d", Urgency: models.UrgencyLow}},
		{"title too long", SubmitInput{Title: strings.Repeat("a", 201), Description: "d", Urgency: models.UrgencyLow}},
		{"title too long in runes", SubmitInput{Title: strings.Repeat("é", 201), Description: "d", Urgency: models.UrgencyLow}},
		{"empty description", SubmitInput{Title: "t", Urgency: models.UrgencyLow}},
		{"description too long", SubmitInput{Title: "t", Description: strings.Repeat("a", 5001), Urgency: models.UrgencyLow}},
		{"invalid urgency", SubmitInput{Title: "t", Description: "d", Urgency: "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Submit(context.Background(), tt.in)
			assert.Error(t, err)
		})
	}
}

func TestGateLimitsCountRunes(t *testing.T) {
	tickets := &fakeTicketRepo{}
	gate := newTestGate(safeClassifier(), &fakeRouter{}, tickets, &fakeViolationRepo{})

	// 150 two-byte runes exceed the title limit in bytes but not in characters.
	ticket, err := gate.Submit(context.Background(), SubmitInput{
		Title:       strings.Repeat("é", 150),
		Description: "accents everywhere",
		Urgency:     models.UrgencyLow,
		OwnerID:     5,
	})
	require.NoError(t, err)
	assert.Len(t, tickets.created, 1)
	assert.Equal(t, strings.Repeat("é", 150), ticket.Title)
}

func TestGatePersistsTrimmedContent(t *testing.T) {
	tickets := &fakeTicketRepo{}
	gate := newTestGate(safeClassifier(), &fakeRouter{}, tickets, &fakeViolationRepo{})

	ticket, err := gate.Submit(context.Background(), SubmitInput{
		Title:       "  monitor flickering\t",
		Description: "\n  started after the last update  ",
		Urgency:     models.UrgencyMedium,
		OwnerID:     6,
	})
	require.NoError(t, err)

	assert.Equal(t, "monitor flickering", ticket.Title)
	assert.Equal(t, "started after the last update", ticket.Description)
	require.Len(t, tickets.created, 1)
	assert.Equal(t, "monitor flickering", tickets.created[0].Title)
}
