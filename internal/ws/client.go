package ws

import (
	"context"
	"time"

	"rtc-signaling/internal/auth"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is the outbound wire envelope (server -> client).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one live websocket session of an authenticated user. It
// implements presence.Peer: the hub registers it under the user and the
// dispatcher pushes events through Deliver.
type Client struct {
	sessionID string
	identity  auth.Identity
	conn      *websocket.Conn
	send      chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(id auth.Identity, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		sessionID: uuid.NewString(),
		identity:  id,
		conn:      conn,
		send:      make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) Identity() auth.Identity { return c.identity }

// Deliver enqueues an event for this session. Delivery is fire-and-forget:
// when the buffer is full the event is dropped rather than blocking the
// signaling path on a slow client.
func (c *Client) Deliver(event string, payload any) {
	select {
	case c.send <- Event{Type: event, Data: payload}:
	default:
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
