package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/calls"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Handler accepts websocket sessions and dispatches their signaling frames
// into the call state machine.
type Handler struct {
	Hub   *Hub
	Auth  *auth.Manager
	Calls *calls.Service

	// InsecureSkipVerify bypasses origin checks; dev-only (see config).
	InsecureSkipVerify bool
}

// Handle upgrades the request and runs the session's read loop until the
// client disconnects. Browser WebSocket clients cannot set the Authorization
// header, so the access token arrives as ?token=...
func (h *Handler) Handle(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
		return
	}

	identity, err := auth.VerifyQueryToken(h.Auth, tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.InsecureSkipVerify {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		return // Accept already wrote the error response
	}

	client := h.Hub.AddClient(identity, conn)
	defer h.Hub.RemoveClient(client)

	h.readLoop(c.Request.Context(), client, conn)
}

func (h *Handler) readLoop(ctx context.Context, client *Client, conn *websocket.Conn) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		h.route(ctx, client, env)
	}
}

// route parses one inbound frame and invokes the matching transition.
// Malformed payloads produce an `error` event to the originating session
// only; they never reach the other party.
func (h *Handler) route(ctx context.Context, client *Client, env Envelope) {
	userID := client.identity.UserID

	switch env.Type {
	case TypeInvite:
		var p invitePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Deliver("error", errorPayload{Message: "malformed invite"})
			return
		}
		err := h.Calls.Invite(ctx, client.identity, calls.InviteInput{
			ToUserID:       p.ToUserID,
			Media:          calls.MediaKind(p.Media),
			ConversationID: p.ConversationID,
		})
		if errors.Is(err, calls.ErrInvalidArgument) {
			client.Deliver("error", errorPayload{Message: "invalid invite"})
		}

	case TypeAccept:
		if callID, ok := h.callRef(client, env.Data); ok {
			h.Calls.Accept(ctx, userID, callID)
		}

	case TypeReject:
		if callID, ok := h.callRef(client, env.Data); ok {
			h.Calls.Reject(ctx, userID, callID)
		}

	case TypeCancel:
		if callID, ok := h.callRef(client, env.Data); ok {
			h.Calls.Cancel(ctx, userID, callID)
		}

	case TypeEnd:
		if callID, ok := h.callRef(client, env.Data); ok {
			h.Calls.End(ctx, userID, callID)
		}

	case TypeOffer, TypeAnswer, TypeICECandidate:
		// The payload is an opaque SDP/ICE blob; only call_id is inspected,
		// the rest is forwarded verbatim.
		if callID, ok := h.callRef(client, env.Data); ok {
			h.Calls.Forward(userID, callID, env.Type, env.Data)
		}

	default:
		client.Deliver("error", errorPayload{Message: "unknown frame type"})
	}
}

func (h *Handler) callRef(client *Client, data json.RawMessage) (string, bool) {
	var p callRefPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		client.Deliver("error", errorPayload{Message: "call_id required"})
		return "", false
	}
	return p.CallID, true
}
