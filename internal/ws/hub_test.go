package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/calls"
	"rtc-signaling/internal/presence"
)

// harness wires a real registry, hub and state machine together, with
// clients whose write loops are not started so tests can read the send
// buffers directly. No sockets involved.
type harness struct {
	reg     *presence.Registry
	hub     *Hub
	svc     *calls.Service
	handler *Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := presence.NewRegistry()
	hub := NewHub(reg)
	svc := calls.NewService(calls.NewStore(), reg, hub, calls.NewMemoryRepo(), calls.ServiceConfig{
		RingTimeout: time.Minute,
	})
	t.Cleanup(svc.Close)
	return &harness{reg: reg, hub: hub, svc: svc, handler: &Handler{Hub: hub, Calls: svc}}
}

func (h *harness) connect(userID string) *Client {
	c := newClient(auth.Identity{UserID: userID, Username: userID, Role: "user"}, nil)
	h.reg.Register(userID, c)
	return c
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countType(events []Event, typ string) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestEmitToUserReportsReachability(t *testing.T) {
	h := newHarness(t)
	h.connect("bob")

	if !h.hub.EmitToUser("bob", "ping", nil) {
		t.Fatalf("expected reachable user")
	}
	if h.hub.EmitToUser("ghost", "ping", nil) {
		t.Fatalf("expected unreachable user")
	}
}

func TestEmitToUserFansOutToAllDevices(t *testing.T) {
	h := newHarness(t)
	d1 := h.connect("bob")
	d2 := h.connect("bob")

	h.hub.EmitToUser("bob", "ping", nil)

	if len(drain(d1)) != 1 || len(drain(d2)) != 1 {
		t.Fatalf("expected event on both devices")
	}
}

func TestDeliverDropsWhenBufferFull(t *testing.T) {
	c := newClient(auth.Identity{UserID: "u"}, nil)
	for i := 0; i < cap(c.send)+10; i++ {
		c.Deliver("ping", i) // must not block
	}
	if got := len(c.send); got != cap(c.send) {
		t.Fatalf("expected full buffer, got %d", got)
	}
}

func TestRouteInviteAcceptRelay(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	ctx := context.Background()

	h.handler.route(ctx, alice, Envelope{Type: TypeInvite, Data: raw(`{"to_user_id":"bob","media":"video"}`)})

	bobEvents := drain(bob)
	if countType(bobEvents, calls.EventRinging) != 1 {
		t.Fatalf("expected ringing for bob, got %+v", bobEvents)
	}
	aliceEvents := drain(alice)
	if countType(aliceEvents, calls.EventCreated) != 1 {
		t.Fatalf("expected created for alice, got %+v", aliceEvents)
	}
	callID := aliceEvents[0].Data.(calls.CallRef).CallID

	h.handler.route(ctx, bob, Envelope{Type: TypeAccept, Data: raw(`{"call_id":"`+callID+`"}`)})
	if evs := drain(alice); countType(evs, calls.EventAccepted) != 1 {
		t.Fatalf("expected accepted for alice, got %+v", evs)
	}

	offer := `{"call_id":"` + callID + `","sdp":"v=0 x"}`
	h.handler.route(ctx, alice, Envelope{Type: TypeOffer, Data: raw(offer)})

	bobEvents = drain(bob)
	if countType(bobEvents, calls.EventOffer) != 1 {
		t.Fatalf("expected relayed offer, got %+v", bobEvents)
	}
	got := string(bobEvents[0].Data.(json.RawMessage))
	if got != offer {
		t.Fatalf("expected verbatim relay, got %s", got)
	}
}

func TestRouteMultiDeviceAccept(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bobPhone := h.connect("bob")
	bobLaptop := h.connect("bob")
	ctx := context.Background()

	h.handler.route(ctx, alice, Envelope{Type: TypeInvite, Data: raw(`{"to_user_id":"bob","media":"audio"}`)})

	if countType(drain(bobPhone), calls.EventRinging) != 1 {
		t.Fatalf("expected ringing on phone")
	}
	laptopRing := drain(bobLaptop)
	if countType(laptopRing, calls.EventRinging) != 1 {
		t.Fatalf("expected ringing on laptop")
	}
	callID := laptopRing[0].Data.(calls.RingingPayload).CallID

	// Accept from one device transitions the shared session exactly once.
	h.handler.route(ctx, bobLaptop, Envelope{Type: TypeAccept, Data: raw(`{"call_id":"`+callID+`"}`)})
	h.handler.route(ctx, bobPhone, Envelope{Type: TypeAccept, Data: raw(`{"call_id":"`+callID+`"}`)})

	if evs := drain(alice); countType(evs, calls.EventAccepted) != 1 {
		t.Fatalf("expected exactly one accepted, got %+v", evs)
	}
	// No further ringing-related events reach the other device.
	if evs := drain(bobPhone); countType(evs, calls.EventRinging)+countType(evs, calls.EventTimeout) != 0 {
		t.Fatalf("expected no further ringing events on phone, got %+v", evs)
	}
}

func TestRouteMalformedPayloadsErrorOriginOnly(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	ctx := context.Background()

	h.handler.route(ctx, alice, Envelope{Type: TypeInvite, Data: raw(`{"media":12}`)})
	h.handler.route(ctx, alice, Envelope{Type: TypeAccept, Data: raw(`{}`)})
	h.handler.route(ctx, alice, Envelope{Type: "selfie", Data: raw(`{}`)})

	if evs := drain(alice); countType(evs, "error") != 3 {
		t.Fatalf("expected 3 error events to origin, got %+v", evs)
	}
	if evs := drain(bob); len(evs) != 0 {
		t.Fatalf("expected nothing delivered to the other party, got %+v", evs)
	}
}

func TestRemoveClientMakesUserOffline(t *testing.T) {
	h := newHarness(t)
	bob := h.connect("bob")

	if !h.reg.IsOnline("bob") {
		t.Fatalf("expected online")
	}
	h.reg.Unregister("bob", bob.SessionID())
	if h.reg.IsOnline("bob") {
		t.Fatalf("expected offline after unregister")
	}
}
