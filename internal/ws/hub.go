package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
	"helpdesk-collab/backend/pkg/ws"
)

// Transport is the write side of a live connection. Implementations must be
// safe for concurrent use; the hub never serializes writes itself.
type Transport interface {
	WriteJSON(v any) error
	Close(code int, reason string) error
}

// Connection is one registered socket, pinned to a single ticket room for
// its whole lifetime.
type Connection struct {
	ID        string
	UserID    uint
	Role      models.Role
	TicketID  uint
	transport Transport
}

// Hub is the connection registry and room broadcaster. A room is the set of
// live connections for one ticket, kept in registration order. Each user has
// at most one live connection; a second connect evicts the first.
//
// One mutex guards all three maps. Transport writes happen outside the lock
// on membership snapshots, so a slow socket can delay delivery but never
// block registration.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*Connection
	byUser map[uint]*Connection
	rooms  map[uint][]*Connection

	metrics *observability.Metrics
	log     *logger.Logger
}

func NewHub(metrics *observability.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		conns:   make(map[string]*Connection),
		byUser:  make(map[uint]*Connection),
		rooms:   make(map[uint][]*Connection),
		metrics: metrics,
		log:     log.WithComponent("ws_hub"),
	}
}

// Connect registers a transport for a user in a ticket room and returns the
// connection id. Any prior live connection of the same user is replaced in
// the same critical section as the registration, so two racing Connects for
// one user can never both survive; the loser's teardown (transport close,
// user_left) happens after the lock is released.
func (h *Hub) Connect(transport Transport, userID uint, role models.Role, ticketID uint) string {
	conn := &Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		TicketID:  ticketID,
		transport: transport,
	}

	h.mu.Lock()
	prev := h.byUser[userID]
	if prev != nil {
		h.removeLocked(prev)
	}
	h.conns[conn.ID] = conn
	h.byUser[userID] = conn
	h.rooms[ticketID] = append(h.rooms[ticketID], conn)
	h.mu.Unlock()

	if prev != nil {
		h.finishDisconnect(prev, "new connection established")
	}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	h.log.Info("Connection registered",
		"connection_id", conn.ID, "user_id", userID, "ticket_id", ticketID)

	h.BroadcastToRoom(ticketID, ws.UserJoinedFrame(ticketID, userID, role), userID)
	return conn.ID
}

// Disconnect removes a connection and closes its transport. Safe to call
// multiple times and from any goroutine; only the first call does anything.
func (h *Hub) Disconnect(connID, reason string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(conn)
	h.mu.Unlock()

	h.finishDisconnect(conn, reason)
}

// removeLocked drops a connection from all three maps. Caller holds h.mu.
func (h *Hub) removeLocked(conn *Connection) {
	delete(h.conns, conn.ID)
	if h.byUser[conn.UserID] == conn {
		delete(h.byUser, conn.UserID)
	}
	h.removeFromRoomLocked(conn)
}

// finishDisconnect runs the teardown of an already-deregistered connection:
// metrics, transport close and the user_left notification. Never call it
// while holding h.mu.
func (h *Hub) finishDisconnect(conn *Connection, reason string) {
	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
	h.log.Info("Connection removed",
		"connection_id", conn.ID, "user_id", conn.UserID, "ticket_id", conn.TicketID, "reason", reason)

	// Best effort; the peer may already be gone.
	_ = conn.transport.Close(websocket.CloseNormalClosure, reason)

	h.BroadcastToRoom(conn.TicketID, ws.UserLeftFrame(conn.TicketID, conn.UserID, reason), conn.UserID)
}

// SendPersonal writes a frame to one connection. A write failure tears the
// connection down; it is never reported to the caller.
func (h *Hub) SendPersonal(connID string, frame ws.ServerFrame) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := conn.transport.WriteJSON(frame); err != nil {
		h.log.Warn("Personal send failed, dropping connection",
			"connection_id", connID, "error", err.Error())
		h.Disconnect(connID, "write failed")
	}
}

// BroadcastToRoom delivers a frame to every member of a ticket room except
// excludeUserID (0 excludes nobody). Sends are independent: a failed member
// is dropped without affecting delivery to the rest.
func (h *Hub) BroadcastToRoom(ticketID uint, frame ws.ServerFrame, excludeUserID uint) {
	h.mu.Lock()
	members := make([]*Connection, 0, len(h.rooms[ticketID]))
	members = append(members, h.rooms[ticketID]...)
	h.mu.Unlock()

	for _, conn := range members {
		if excludeUserID != 0 && conn.UserID == excludeUserID {
			continue
		}
		if err := conn.transport.WriteJSON(frame); err != nil {
			if h.metrics != nil {
				h.metrics.BroadcastFailures.Inc()
			}
			h.log.Warn("Broadcast send failed, dropping member",
				"connection_id", conn.ID, "ticket_id", ticketID, "error", err.Error())
			h.Disconnect(conn.ID, "write failed")
		}
	}
}

// RoomSize reports the number of live connections in a ticket room.
func (h *Hub) RoomSize(ticketID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[ticketID])
}

// CloseAll tears down every connection, for shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Disconnect(id, reason)
	}
}

// removeFromRoomLocked drops conn from its room, deleting the room outright
// when it empties. Caller holds h.mu.
func (h *Hub) removeFromRoomLocked(conn *Connection) {
	members := h.rooms[conn.TicketID]
	for i, c := range members {
		if c == conn {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(h.rooms, conn.TicketID)
		return
	}
	h.rooms[conn.TicketID] = members
}
