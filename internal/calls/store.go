package calls

import (
	"sync"
	"time"
)

// Store is the in-memory table of in-flight call sessions, keyed by call ID.
// It is process-wide state with the same lifecycle as the process.
//
// Concurrency: invite/accept/reject/cancel/timeout arrive as independent
// events, so every transition re-validates session state under the store lock
// (via Update). A timer firing against a session that already left ringing
// observes the new state and backs off.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: map[string]*Session{}}
}

// Put inserts a new session. Call IDs are never reused, so an existing entry
// means the caller generated a duplicate ID; ok is false in that case.
func (st *Store) Put(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.ID]; exists {
		return false
	}
	st.sessions[s.ID] = s
	return true
}

// Get returns a snapshot copy of the session. The copy never carries the
// timer; it is read-only data for callers outside the transition path.
func (st *Store) Get(callID string) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[callID]
	if !ok {
		return Session{}, false
	}
	snap := *s
	snap.timer = nil
	return snap, true
}

// Update runs fn against the live session under the store lock. fn returns
// false to abort (guard failed). The returned snapshot reflects the session
// after fn ran; ok is true only when the session existed and fn accepted it.
//
// Every state-machine guard lives inside an Update callback so that
// check-then-act is atomic with respect to concurrent transitions.
func (st *Store) Update(callID string, fn func(*Session) bool) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[callID]
	if !ok {
		return Session{}, false
	}
	if !fn(s) {
		return Session{}, false
	}
	snap := *s
	snap.timer = nil
	return snap, true
}

// Remove deletes a session and stops its ring timer. Timer cancellation and
// removal are paired: no session is removed with a live timer, and a stopped
// timer never fires against a removed session.
func (st *Store) Remove(callID string) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[callID]
	if !ok {
		return Session{}, false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	delete(st.sessions, callID)
	snap := *s
	return snap, true
}

// ArmTimer attaches the ring timer to a session. At most one timer exists per
// session; arming twice stops the previous one first.
func (st *Store) ArmTimer(callID string, d time.Duration, fire func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[callID]
	if !ok {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fire)
}

// stopTimerLocked is used inside Update callbacks when a session leaves
// ringing without being removed (accept).
func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Len reports the number of in-flight sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
