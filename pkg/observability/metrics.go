package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the collaboration core reports into.
type Metrics struct {
	WSConnections     prometheus.Gauge
	MessagesSent      *prometheus.CounterVec
	TicketsCreated    prometheus.Counter
	TicketsFlagged    *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
	HookFailures      *prometheus.CounterVec
}

// NewMetrics registers the helpdesk collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_ws_connections",
			Help: "Number of live websocket connections.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_messages_sent_total",
			Help: "Chat messages persisted, by message type.",
		}, []string{"type"}),
		TicketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_tickets_created_total",
			Help: "Tickets accepted by the content safety gate.",
		}),
		TicketsFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_tickets_flagged_total",
			Help: "Ticket creation attempts rejected, by content type.",
		}, []string{"content_type"}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_broadcast_failures_total",
			Help: "Per-member websocket sends that failed during a broadcast.",
		}),
		HookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_hook_failures_total",
			Help: "Best-effort hook invocations that failed, by hook.",
		}, []string{"hook"}),
	}

	reg.MustRegister(
		m.WSConnections,
		m.MessagesSent,
		m.TicketsCreated,
		m.TicketsFlagged,
		m.BroadcastFailures,
		m.HookFailures,
	)
	return m
}
