package safety

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
)

// ContentFlaggedError rejects a ticket submission on safety grounds. The
// UserMessage is safe to show to the submitting user; the classifier's raw
// reason is not, and stays in the violation record.
type ContentFlaggedError struct {
	ContentType models.ViolationType
	UserMessage string
}

func (e *ContentFlaggedError) Error() string {
	return fmt.Sprintf("content flagged as %s", e.ContentType)
}

// SubmitInput is a ticket creation request as it arrives at the gate.
type SubmitInput struct {
	Title       string
	Description string
	Urgency     models.Urgency
	OwnerID     uint
}

// Limits bounds accepted ticket content.
type Limits struct {
	MaxTitleLen       int
	MaxDescriptionLen int
}

// Gate is the single entry point for ticket creation. Every submission is
// classified before a ticket row can exist; flagged content produces a
// Violation record and never a ticket. When the classifier or router is
// unreachable the gate fails safe: the ticket is created open and unassigned
// rather than blocking the user on a degraded dependency.
type Gate struct {
	classifier Classifier
	router     DepartmentRouter
	tickets    repository.TicketRepository
	violations repository.ViolationRepository
	limits     Limits
	metrics    *observability.Metrics
	log        *logger.Logger
}

func NewGate(
	classifier Classifier,
	router DepartmentRouter,
	tickets repository.TicketRepository,
	violations repository.ViolationRepository,
	limits Limits,
	metrics *observability.Metrics,
	log *logger.Logger,
) *Gate {
	if limits.MaxTitleLen <= 0 {
		limits.MaxTitleLen = 200
	}
	if limits.MaxDescriptionLen <= 0 {
		limits.MaxDescriptionLen = 5000
	}
	return &Gate{
		classifier: classifier,
		router:     router,
		tickets:    tickets,
		violations: violations,
		limits:     limits,
		metrics:    metrics,
		log:        log.WithComponent("safety_gate"),
	}
}

// Submit validates, classifies and either persists a ticket or records a
// violation. On rejection the returned error is a *ContentFlaggedError.
func (g *Gate) Submit(ctx context.Context, in SubmitInput) (*models.Ticket, error) {
	if err := g.validate(&in); err != nil {
		return nil, err
	}

	verdict := g.classify(ctx, in)
	if verdict.IsHarmful {
		return nil, g.reject(ctx, in, verdict)
	}

	department := g.route(ctx, in)

	ticket := &models.Ticket{
		Code:        newTicketCode(),
		Title:       in.Title,
		Description: in.Description,
		Urgency:     in.Urgency,
		Status:      models.StatusOpen,
		OwnerID:     in.OwnerID,
		MisuseFlag:  false,
	}
	if department != nil {
		ticket.Status = models.StatusAssigned
		ticket.Department = department
	}

	if err := g.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if g.metrics != nil {
		g.metrics.TicketsCreated.Inc()
	}
	g.log.Info("Ticket created",
		"ticket_id", ticket.ID,
		"code", ticket.Code,
		"status", ticket.Status,
		"owner_id", ticket.OwnerID)
	return ticket, nil
}

// validate normalizes the input in place: the trimmed title and description
// are what gets classified and persisted. Limits count runes, not bytes.
func (g *Gate) validate(in *SubmitInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || utf8.RuneCountInString(in.Title) > g.limits.MaxTitleLen {
		return apperrors.NewValidationError(fmt.Sprintf("title must be 1-%d characters", g.limits.MaxTitleLen))
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" || utf8.RuneCountInString(in.Description) > g.limits.MaxDescriptionLen {
		return apperrors.NewValidationError(fmt.Sprintf("description must be 1-%d characters", g.limits.MaxDescriptionLen))
	}
	if !in.Urgency.IsValid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid urgency: %s", in.Urgency))
	}
	return nil
}

// classify calls the classifier, degrading to a not-harmful verdict when the
// service is unavailable. Blocking every ticket on a down classifier would
// take the whole helpdesk out with it.
func (g *Gate) classify(ctx context.Context, in SubmitInput) *Verdict {
	verdict, err := g.classifier.Classify(ctx, in.Title, in.Description)
	if err != nil {
		g.log.Warn("Content classifier unavailable, accepting submission",
			"owner_id", in.OwnerID, "error", err.Error())
		return &Verdict{IsHarmful: false}
	}
	return verdict
}

func (g *Gate) route(ctx context.Context, in SubmitInput) *models.Department {
	department, err := g.router.Assign(ctx, in.Title, in.Description)
	if err != nil {
		g.log.Warn("Department router unavailable, leaving ticket unassigned",
			"owner_id", in.OwnerID, "error", err.Error())
		return nil
	}
	return department
}

func (g *Gate) reject(ctx context.Context, in SubmitInput, verdict *Verdict) error {
	severity := deriveSeverity(verdict)

	violation := &models.Violation{
		UserID:      in.OwnerID,
		Type:        verdict.ContentType,
		Severity:    severity,
		Title:       in.Title,
		Description: in.Description,
		Reason:      verdict.Reason,
		Confidence:  verdict.Confidence,
		ReviewState: models.ReviewPending,
	}
	// Best effort: losing the audit row must not turn a rejection into an
	// acceptance.
	if err := g.violations.Create(ctx, violation); err != nil {
		g.log.LogError(err, "Failed to persist violation record",
			"user_id", in.OwnerID, "content_type", verdict.ContentType)
	}

	if g.metrics != nil {
		g.metrics.TicketsFlagged.WithLabelValues(string(verdict.ContentType)).Inc()
	}
	g.log.Info("Ticket submission flagged",
		"user_id", in.OwnerID,
		"content_type", verdict.ContentType,
		"severity", severity,
		"confidence", verdict.Confidence)

	return &ContentFlaggedError{
		ContentType: verdict.ContentType,
		UserMessage: userMessageFor(verdict.ContentType),
	}
}

// deriveSeverity ranks a harmful verdict. Profanity is always high severity
// regardless of confidence.
func deriveSeverity(v *Verdict) models.Severity {
	switch {
	case v.Confidence >= 0.9 || v.ContentType == models.ViolationProfanity:
		return models.SeverityHigh
	case v.Confidence >= 0.7:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func userMessageFor(ct models.ViolationType) string {
	switch ct {
	case models.ViolationProfanity:
		return "Your submission contains language that violates the workplace conduct policy."
	case models.ViolationSpam:
		return "Your submission was identified as spam. Please describe a specific issue."
	default:
		return "Your submission was flagged by the content policy and cannot be accepted."
	}
}

func newTicketCode() string {
	id := strings.ToUpper(uuid.New().String())
	return "HD-" + strings.ReplaceAll(id, "-", "")[:8]
}
