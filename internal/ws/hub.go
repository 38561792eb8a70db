package ws

import (
	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/presence"

	"nhooyr.io/websocket"
)

// Hub binds websocket sessions to the presence registry and implements the
// outbound event dispatcher consumed by the signaling state machine.
type Hub struct {
	registry *presence.Registry
}

func NewHub(registry *presence.Registry) *Hub {
	return &Hub{registry: registry}
}

// AddClient registers a new authenticated session and starts its write and
// keepalive loops. The first session makes the user observably online.
func (h *Hub) AddClient(id auth.Identity, conn *websocket.Conn) *Client {
	c := newClient(id, conn)
	h.registry.Register(id.UserID, c)

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient unregisters a session and closes the connection. The last
// session makes the user observably offline.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()
	h.registry.Unregister(c.identity.UserID, c.sessionID)
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// EmitToUser delivers an event to every live session of a user (multi-device
// fan-out). It reports whether the user had at least one session; it never
// waits for client acknowledgement and never retries.
func (h *Hub) EmitToUser(userID, event string, payload any) bool {
	peers := h.registry.SessionsFor(userID)
	for _, p := range peers {
		p.Deliver(event, payload)
	}
	return len(peers) > 0
}
