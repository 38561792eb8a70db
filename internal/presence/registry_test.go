package presence

import (
	"sync"
	"testing"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	events []string
}

func (p *fakePeer) SessionID() string { return p.id }

func (p *fakePeer) Deliver(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func TestRegisterMakesUserOnline(t *testing.T) {
	r := NewRegistry()

	if r.IsOnline("alice") {
		t.Fatalf("expected offline before register")
	}
	r.Register("alice", &fakePeer{id: "s1"})
	if !r.IsOnline("alice") {
		t.Fatalf("expected online after register")
	}
	if got := len(r.SessionsFor("alice")); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}
}

func TestUnregisterLastSessionDeletesEntry(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", &fakePeer{id: "s1"})
	r.Register("alice", &fakePeer{id: "s2"})

	r.Unregister("alice", "s1")
	if !r.IsOnline("alice") {
		t.Fatalf("expected still online with one session left")
	}
	r.Unregister("alice", "s2")
	if r.IsOnline("alice") {
		t.Fatalf("expected offline after last unregister")
	}
	if got := r.OnlineUsers(); got != 0 {
		t.Fatalf("expected 0 online users, got %d", got)
	}
}

func TestUnknownUserReportsEmpty(t *testing.T) {
	r := NewRegistry()
	if r.IsOnline("ghost") {
		t.Fatalf("expected unknown user offline")
	}
	if got := r.SessionsFor("ghost"); got != nil {
		t.Fatalf("expected nil sessions, got %v", got)
	}
	// Unregister of an unknown user must be a no-op, not a panic.
	r.Unregister("ghost", "s1")
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%4))
			p := &fakePeer{id: id}
			r.Register("bob", p)
			_ = r.IsOnline("bob")
			r.Unregister("bob", id)
		}(i)
	}
	wg.Wait()

	if r.OpenSessions() != 0 {
		t.Fatalf("expected no sessions left, got %d", r.OpenSessions())
	}
}
