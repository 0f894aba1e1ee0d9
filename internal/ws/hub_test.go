package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/ws"
)

// fakeTransport records frames and close calls; failWrites makes every
// WriteJSON error to simulate a dead peer.
type fakeTransport struct {
	mu         sync.Mutex
	frames     []ws.ServerFrame
	closed     bool
	closeCode  int
	closeText  string
	failWrites bool
}

func (t *fakeTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWrites {
		return errors.New("broken pipe")
	}
	t.frames = append(t.frames, v.(ws.ServerFrame))
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.closeCode = code
	t.closeText = reason
	return nil
}

func (t *fakeTransport) framesOfType(ft ws.FrameType) []ws.ServerFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ws.ServerFrame
	for _, f := range t.frames {
		if f.Type == ft {
			out = append(out, f)
		}
	}
	return out
}

func (t *fakeTransport) isClosed() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed, t.closeText
}

func newTestHub() *Hub {
	return NewHub(nil, logger.New(logger.DefaultConfig()))
}

func TestHubConnectEvictsPriorConnection(t *testing.T) {
	hub := newTestHub()
	first := &fakeTransport{}
	second := &fakeTransport{}

	firstID := hub.Connect(first, 10, models.RoleUser, 1)
	secondID := hub.Connect(second, 10, models.RoleUser, 1)
	require.NotEqual(t, firstID, secondID)

	closed, reason := first.isClosed()
	assert.True(t, closed, "prior connection must be evicted")
	assert.Equal(t, "new connection established", reason)

	secondClosed, _ := second.isClosed()
	assert.False(t, secondClosed)
	assert.Equal(t, 1, hub.RoomSize(1), "at most one live connection per user")
}

func TestHubConcurrentConnectsSameUser(t *testing.T) {
	hub := newTestHub()

	// Hammer Connect for the same user from many goroutines; eviction and
	// registration share a critical section, so exactly one connection may
	// survive no matter how the calls interleave.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Connect(&fakeTransport{}, 10, models.RoleUser, 7)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hub.RoomSize(7), "at most one live connection per user")

	hub.mu.Lock()
	conns := len(hub.conns)
	byUser := len(hub.byUser)
	survivor := hub.byUser[10]
	hub.mu.Unlock()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 1, byUser)
	require.NotNil(t, survivor)

	closed, _ := survivor.transport.(*fakeTransport).isClosed()
	assert.False(t, closed, "the surviving connection must not have been torn down")
}

func TestHubBroadcastToRoom(t *testing.T) {
	hub := newTestHub()
	alice := &fakeTransport{}
	bob := &fakeTransport{}
	carol := &fakeTransport{}

	hub.Connect(alice, 1, models.RoleUser, 7)
	hub.Connect(bob, 2, models.RoleITAgent, 7)
	hub.Connect(carol, 3, models.RoleUser, 8) // different room

	hub.BroadcastToRoom(7, ws.PongFrame(), 0)

	assert.Len(t, alice.framesOfType(ws.FramePong), 1)
	assert.Len(t, bob.framesOfType(ws.FramePong), 1)
	assert.Empty(t, carol.framesOfType(ws.FramePong), "other rooms must not receive the frame")
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := newTestHub()
	alice := &fakeTransport{}
	bob := &fakeTransport{}

	hub.Connect(alice, 1, models.RoleUser, 7)
	hub.Connect(bob, 2, models.RoleITAgent, 7)

	hub.BroadcastToRoom(7, ws.TypingFrame(7, 1, true), 1)

	assert.Empty(t, alice.framesOfType(ws.FrameTyping))
	require.Len(t, bob.framesOfType(ws.FrameTyping), 1)
	assert.True(t, bob.framesOfType(ws.FrameTyping)[0].IsTyping)
}

func TestHubBroadcastIsolatesMemberFailure(t *testing.T) {
	hub := newTestHub()
	healthy1 := &fakeTransport{}
	broken := &fakeTransport{failWrites: true}
	healthy2 := &fakeTransport{}

	hub.Connect(healthy1, 1, models.RoleUser, 7)
	hub.Connect(broken, 2, models.RoleUser, 7)
	hub.Connect(healthy2, 3, models.RoleUser, 7)

	hub.BroadcastToRoom(7, ws.PongFrame(), 0)

	assert.Len(t, healthy1.framesOfType(ws.FramePong), 1)
	assert.Len(t, healthy2.framesOfType(ws.FramePong), 1, "failure of one member must not abort delivery")

	closed, _ := broken.isClosed()
	assert.True(t, closed, "failed member is disconnected")
	assert.Equal(t, 2, hub.RoomSize(7))
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	hub := newTestHub()
	transport := &fakeTransport{}
	connID := hub.Connect(transport, 1, models.RoleUser, 7)

	hub.Disconnect(connID, "client disconnected")
	hub.Disconnect(connID, "client disconnected")
	hub.Disconnect("no-such-conn", "whatever")

	assert.Equal(t, 0, hub.RoomSize(7))
}

func TestHubEmptyRoomIsRemoved(t *testing.T) {
	hub := newTestHub()
	transport := &fakeTransport{}
	connID := hub.Connect(transport, 1, models.RoleUser, 7)

	hub.Disconnect(connID, "client disconnected")

	hub.mu.Lock()
	_, exists := hub.rooms[7]
	hub.mu.Unlock()
	assert.False(t, exists, "empty rooms must be deleted immediately")
}

func TestHubUserJoinedAndLeftNotifications(t *testing.T) {
	hub := newTestHub()
	alice := &fakeTransport{}
	bob := &fakeTransport{}

	hub.Connect(alice, 1, models.RoleUser, 7)
	bobID := hub.Connect(bob, 2, models.RoleITAgent, 7)

	joined := alice.framesOfType(ws.FrameUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, uint(2), joined[0].UserID)
	assert.Equal(t, models.RoleITAgent, joined[0].Role)
	assert.Empty(t, bob.framesOfType(ws.FrameUserJoined), "joiner does not see its own join")

	hub.Disconnect(bobID, "client disconnected")
	left := alice.framesOfType(ws.FrameUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, uint(2), left[0].UserID)
	assert.Equal(t, "client disconnected", left[0].Reason)
}

func TestHubSendPersonalFailureDisconnects(t *testing.T) {
	hub := newTestHub()
	broken := &fakeTransport{failWrites: true}
	connID := hub.Connect(broken, 1, models.RoleUser, 7)

	hub.SendPersonal(connID, ws.PongFrame())

	closed, _ := broken.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 0, hub.RoomSize(7))
}

func TestHubCloseAll(t *testing.T) {
	hub := newTestHub()
	a := &fakeTransport{}
	b := &fakeTransport{}
	hub.Connect(a, 1, models.RoleUser, 7)
	hub.Connect(b, 2, models.RoleUser, 8)

	hub.CloseAll("server shutting down")

	aClosed, _ := a.isClosed()
	bClosed, _ := b.isClosed()
	assert.True(t, aClosed)
	assert.True(t, bClosed)
	assert.Equal(t, 0, hub.RoomSize(7))
	assert.Equal(t, 0, hub.RoomSize(8))
}
