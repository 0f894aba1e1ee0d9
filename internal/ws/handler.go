package ws

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/service"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/jwt"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/ws"
)

// Handler upgrades HTTP requests into ticket-room connections.
type Handler struct {
	hub      *Hub
	tickets  *service.TicketService
	messages *service.MessageService
	tokens   *jwt.Service
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, tickets *service.TicketService, messages *service.MessageService, tokens *jwt.Service, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		hub:      hub,
		tickets:  tickets,
		messages: messages,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.WithComponent("ws_handler"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWs handles GET /ws/tickets/:id. Auth runs after the upgrade so
// failures can be reported with an application close code instead of a
// rejected handshake the browser cannot inspect.
func (h *Handler) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}
	transport := &wsTransport{conn: conn}

	claims, err := h.tokens.ValidateToken(c.Query("token"))
	if err != nil {
		_ = transport.Close(ws.CloseUnauthorized, "missing or invalid token")
		return
	}
	actor := service.Actor{UserID: claims.UserID, Role: models.Role(claims.Role)}

	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		_ = transport.Close(ws.CloseInternalError, "invalid ticket id")
		return
	}

	if _, err := h.tickets.GetTicket(c.Request.Context(), actor, uint(ticketID)); err != nil {
		if apperrors.IsAuthorization(err) || apperrors.IsNotFound(err) {
			_ = transport.Close(ws.CloseAccessDenied, "ticket access denied")
		} else {
			h.log.LogError(err, "Ticket lookup failed during ws connect",
				"ticket_id", ticketID, "user_id", actor.UserID)
			_ = transport.Close(ws.CloseInternalError, "internal error")
		}
		return
	}

	connID := h.hub.Connect(transport, actor.UserID, actor.Role, uint(ticketID))
	h.hub.SendPersonal(connID, ws.ConnectionEstablishedFrame(connID, uint(ticketID)))

	cl := &client{
		connID:    connID,
		actor:     actor,
		ticketID:  uint(ticketID),
		transport: transport,
		hub:       h.hub,
		messages:  h.messages,
		log:       h.log,
	}
	go cl.run()
}
