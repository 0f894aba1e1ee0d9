package models

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen     TicketStatus = "open"
	StatusAssigned TicketStatus = "assigned"
	StatusResolved TicketStatus = "resolved"
	StatusClosed   TicketStatus = "closed"
)

var validTicketStatuses = map[TicketStatus]bool{
	StatusOpen:     true,
	StatusAssigned: true,
	StatusResolved: true,
	StatusClosed:   true,
}

// ticketStatusTransitions is the full transition table. Closed is terminal.
var ticketStatusTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:     {StatusAssigned, StatusResolved},
	StatusAssigned: {StatusResolved, StatusOpen},
	StatusResolved: {StatusClosed, StatusAssigned},
	StatusClosed:   {},
}

func (ts TicketStatus) String() string {
	return string(ts)
}

func (ts TicketStatus) IsValid() bool {
	return validTicketStatuses[ts]
}

func (ts TicketStatus) IsClosed() bool {
	return ts == StatusClosed
}

// CanTransitionTo reports whether the transition table allows moving to newStatus.
func (ts TicketStatus) CanTransitionTo(newStatus TicketStatus) bool {
	allowed, ok := ticketStatusTransitions[ts]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

func NewTicketStatus(s string) (TicketStatus, error) {
	ts := TicketStatus(s)
	if !ts.IsValid() {
		return "", fmt.Errorf("invalid ticket status: %s", s)
	}
	return ts, nil
}

// TransitionError signals a status change outside the transition table.
// The ticket's state is left unchanged when it is returned.
type TransitionError struct {
	From TicketStatus
	To   TicketStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition ticket from %s to %s", e.From, e.To)
}

// Urgency is the user-reported urgency of a ticket.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Department is the team a ticket is routed to. A nil *Department on a
// ticket means no team has picked it up yet.
type Department string

const (
	DepartmentIT Department = "IT"
	DepartmentHR Department = "HR"
)

func (d Department) IsValid() bool {
	return d == DepartmentIT || d == DepartmentHR
}

// Ticket is a helpdesk ticket. Rows are created by the content safety gate
// and mutated only through the ticket service; they are never hard-deleted.
type Ticket struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"uniqueIndex;size:16" json:"code"`
	Title       string       `gorm:"size:200" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Urgency     Urgency      `gorm:"size:10" json:"urgency"`
	Status      TicketStatus `gorm:"size:16;index" json:"status"`
	Department  *Department  `gorm:"size:8;index" json:"department"`
	AssigneeID  *uint        `gorm:"index" json:"assignee_id"`
	OwnerID     uint         `gorm:"index" json:"owner_id"`
	MisuseFlag  bool         `gorm:"default:false" json:"misuse_flag"`
	Feedback    *string      `gorm:"type:text" json:"feedback,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
}

// ChangeStatus applies a transition from the table, stamping closed_at when
// the ticket reaches closed. Invariant: closed_at is set iff status==closed.
func (t *Ticket) ChangeStatus(newStatus TicketStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid ticket status: %s", newStatus)
	}
	if !t.Status.CanTransitionTo(newStatus) {
		return &TransitionError{From: t.Status, To: newStatus}
	}

	t.Status = newStatus
	if newStatus.IsClosed() {
		now := time.Now()
		t.ClosedAt = &now
	} else {
		t.ClosedAt = nil
	}
	return nil
}
