package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/service"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/ws"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8192
	requestTimeout = 15 * time.Second
)

// wsTransport adapts a gorilla connection to the hub's Transport. gorilla
// allows one concurrent writer, so every write goes through the mutex;
// writers include the client's read-loop responses, hub broadcasts and the
// keepalive ticker.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason))
	return t.conn.Close()
}

func (t *wsTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

// client runs the read loop for one registered connection.
type client struct {
	connID    string
	actor     service.Actor
	ticketID  uint
	transport *wsTransport
	hub       *Hub
	messages  *service.MessageService
	log       *logger.Logger
}

// run processes inbound frames until the socket dies, then unregisters. The
// keepalive ticker runs alongside the read loop and stops with it.
func (c *client) run() {
	defer c.hub.Disconnect(c.connID, "client disconnected")

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.keepalive(stopPing)

	c.transport.conn.SetReadLimit(maxFrameSize)
	c.transport.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.transport.conn.SetPongHandler(func(string) error {
		c.transport.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.transport.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected socket close", "connection_id", c.connID, "error", err.Error())
			}
			return
		}

		var frame ws.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.hub.SendPersonal(c.connID, ws.ErrorFrame("MALFORMED_FRAME", "frame is not valid JSON"))
			continue
		}
		c.dispatch(frame)
	}
}

func (c *client) dispatch(frame ws.ClientFrame) {
	switch frame.Type {
	case ws.FrameChat:
		c.handleChat(frame)
	case ws.FrameTyping:
		c.hub.BroadcastToRoom(c.ticketID,
			ws.TypingFrame(c.ticketID, c.actor.UserID, frame.IsTyping), c.actor.UserID)
	case ws.FramePing:
		c.hub.SendPersonal(c.connID, ws.PongFrame())
	default:
		c.hub.SendPersonal(c.connID,
			ws.ErrorFrame("UNKNOWN_FRAME_TYPE", "unsupported frame type: "+string(frame.Type)))
	}
}

// handleChat pushes a socket-originated message through the same pipeline as
// an HTTP send. The broadcast inside the pipeline includes this sender's own
// socket, which doubles as the delivery confirmation.
func (c *client) handleChat(frame ws.ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	msgType := frame.MessageType
	if msgType == "" {
		msgType = models.MessageTypeUser
	}
	_, err := c.messages.SendChatMessage(ctx, c.actor, service.SendMessageInput{
		TicketID: c.ticketID,
		Content:  frame.Content,
		Type:     msgType,
		IsAI:     frame.IsAI,
	})
	if err != nil {
		c.hub.SendPersonal(c.connID, ws.ErrorFrame("SEND_FAILED", err.Error()))
	}
}

func (c *client) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.transport.ping(); err != nil {
				c.hub.Disconnect(c.connID, "keepalive failed")
				return
			}
		case <-stop:
			return
		}
	}
}
