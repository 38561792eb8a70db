package presence

import "sync"

// Peer is one live transport session of a user. The websocket layer
// implements it; the registry never touches connections directly.
type Peer interface {
	SessionID() string
	Deliver(event string, payload any)
}

// Registry tracks which users currently have open transport sessions.
// A user is online iff they have at least one registered peer (multi-device:
// one entry per open tab/app). It is process-wide state, constructed once at
// startup and injected where needed.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]map[string]Peer // userID -> sessionID -> peer
}

func NewRegistry() *Registry {
	return &Registry{peers: map[string]map[string]Peer{}}
}

// Register adds a transport session under a user. The first session makes the
// user observably online.
func (r *Registry) Register(userID string, p Peer) {
	if userID == "" || p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.peers[userID] == nil {
		r.peers[userID] = map[string]Peer{}
	}
	r.peers[userID][p.SessionID()] = p
}

// Unregister removes a transport session. Removing the last session deletes
// the user's entry, making them observably offline.
func (r *Registry) Unregister(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.peers[userID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.peers, userID)
	}
}

// IsOnline reports whether the user has any live session.
// Unknown users simply report offline.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers[userID]) > 0
}

// SessionsFor returns a snapshot of the user's live peers.
func (r *Registry) SessionsFor(userID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.peers[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Peer, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	return out
}

// OnlineUsers returns the number of users with at least one live session.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// OpenSessions returns the total number of live transport sessions.
func (r *Registry) OpenSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.peers {
		n += len(set)
	}
	return n
}
