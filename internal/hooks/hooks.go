// Package hooks delivers best-effort webhook notifications to downstream
// systems. Hook failures are logged and counted, never surfaced to the
// request that triggered them.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
)

// Config carries the webhook endpoints and shared auth token.
type Config struct {
	NotificationURL  string
	SummarizationURL string
	Token            string
	Timeout          time.Duration
}

// Notifier posts ticket lifecycle events to the configured webhooks. Empty
// URLs disable the corresponding hook.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
	metrics    *observability.Metrics
	log        *logger.Logger
}

func NewNotifier(cfg Config, metrics *observability.Metrics, log *logger.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		log:        log.WithComponent("hooks"),
	}
}

type messageEvent struct {
	Event     string    `json:"event"`
	TicketID  uint      `json:"ticket_id"`
	MessageID uint      `json:"message_id"`
	SenderID  uint      `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ticketClosedEvent struct {
	Event    string    `json:"event"`
	TicketID uint      `json:"ticket_id"`
	Code     string    `json:"code"`
	ClosedAt time.Time `json:"closed_at"`
}

// OnMessageSent notifies the notification service that a message was
// persisted. Best effort.
func (n *Notifier) OnMessageSent(ctx context.Context, msg *models.Message) {
	if n == nil || n.cfg.NotificationURL == "" {
		return
	}
	event := messageEvent{
		Event:     "message.sent",
		TicketID:  msg.TicketID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Timestamp: msg.Timestamp,
	}
	if err := n.post(ctx, n.cfg.NotificationURL, event); err != nil {
		if n.metrics != nil {
			n.metrics.HookFailures.WithLabelValues("notification").Inc()
		}
		n.log.Warn("Notification hook failed",
			"ticket_id", msg.TicketID, "message_id", msg.ID, "error", err.Error())
	}
}

// OnTicketClosed asks the summarization service to summarize a closed
// ticket. Fired exactly once per close; best effort.
func (n *Notifier) OnTicketClosed(ctx context.Context, ticket *models.Ticket) {
	if n == nil || n.cfg.SummarizationURL == "" {
		return
	}
	closedAt := time.Now()
	if ticket.ClosedAt != nil {
		closedAt = *ticket.ClosedAt
	}
	event := ticketClosedEvent{
		Event:    "ticket.closed",
		TicketID: ticket.ID,
		Code:     ticket.Code,
		ClosedAt: closedAt,
	}
	if err := n.post(ctx, n.cfg.SummarizationURL, event); err != nil {
		if n.metrics != nil {
			n.metrics.HookFailures.WithLabelValues("summarization").Inc()
		}
		n.log.Warn("Summarization hook failed",
			"ticket_id", ticket.ID, "error", err.Error())
	}
}

func (n *Notifier) post(ctx context.Context, url string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Token != "" {
		req.Header.Set("X-Webhook-Token", n.cfg.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
