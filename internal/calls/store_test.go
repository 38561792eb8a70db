package calls

import (
	"testing"
	"time"
)

func TestStorePutRejectsDuplicateID(t *testing.T) {
	st := NewStore()

	if !st.Put(&Session{ID: "c1", State: StateRinging}) {
		t.Fatalf("expected first put to succeed")
	}
	if st.Put(&Session{ID: "c1", State: StateRinging}) {
		t.Fatalf("expected duplicate put to fail")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}
}

func TestStoreUpdateGuardAborts(t *testing.T) {
	st := NewStore()
	st.Put(&Session{ID: "c1", State: StateActive})

	_, ok := st.Update("c1", func(s *Session) bool {
		return s.State == StateRinging
	})
	if ok {
		t.Fatalf("expected guard to reject non-ringing session")
	}

	if _, ok := st.Update("missing", func(s *Session) bool { return true }); ok {
		t.Fatalf("expected unknown call id to report not found")
	}
}

func TestStoreUpdateReturnsSnapshotAfterMutation(t *testing.T) {
	st := NewStore()
	st.Put(&Session{ID: "c1", State: StateRinging})

	snap, ok := st.Update("c1", func(s *Session) bool {
		s.State = StateActive
		return true
	})
	if !ok || snap.State != StateActive {
		t.Fatalf("expected active snapshot, got %+v ok=%v", snap, ok)
	}
}

func TestStoreRemoveStopsTimer(t *testing.T) {
	st := NewStore()
	st.Put(&Session{ID: "c1", State: StateRinging})

	fired := make(chan struct{}, 1)
	st.ArmTimer("c1", 20*time.Millisecond, func() { fired <- struct{}{} })

	if _, ok := st.Remove("c1"); !ok {
		t.Fatalf("expected remove to find session")
	}

	select {
	case <-fired:
		t.Fatalf("timer fired after removal")
	case <-time.After(60 * time.Millisecond):
	}

	if _, ok := st.Remove("c1"); ok {
		t.Fatalf("expected second remove to report not found")
	}
}

func TestStoreArmTimerReplacesPrevious(t *testing.T) {
	st := NewStore()
	st.Put(&Session{ID: "c1", State: StateRinging})

	fired := make(chan string, 2)
	st.ArmTimer("c1", 20*time.Millisecond, func() { fired <- "first" })
	st.ArmTimer("c1", 40*time.Millisecond, func() { fired <- "second" })

	select {
	case which := <-fired:
		if which != "second" {
			t.Fatalf("expected only the replacement timer to fire, got %q", which)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected replacement timer to fire")
	}

	select {
	case which := <-fired:
		t.Fatalf("unexpected extra timer fire: %q", which)
	case <-time.After(60 * time.Millisecond):
	}
}
