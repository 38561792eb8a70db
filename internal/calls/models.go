package calls

import "time"

// MediaKind is fixed at invite time and used for display/logging only.
// The relay never inspects it.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

func (m MediaKind) Valid() bool { return m == MediaAudio || m == MediaVideo }

// SessionState is the in-memory negotiation state of one call attempt.
// Transitions are forward-only: ringing -> active -> ended, or
// ringing -> ended (reject/cancel/timeout).
type SessionState string

const (
	StateRinging SessionState = "ringing"
	StateActive  SessionState = "active"
	StateEnded   SessionState = "ended"
)

// Session is one in-flight call negotiation between two users, keyed by ID.
// It is transient: it exists only in the Store and is removed the moment it
// enters StateEnded. All mutation happens under the Store lock.
type Session struct {
	ID             string
	CallerID       string
	CalleeID       string
	Media          MediaKind
	State          SessionState
	ConversationID string

	CreatedAt time.Time
	StartedAt time.Time // zero unless the session reached active
	EndedAt   time.Time

	// RecordID references the durable call-history row, set once created.
	// Terminal transitions patch that row through it.
	RecordID string

	timer *time.Timer // ring timeout; nil once the session leaves ringing
}

// Counterpart returns the other party of the session relative to userID.
// ok is false when userID is not a party at all.
func (s *Session) Counterpart(userID string) (string, bool) {
	switch userID {
	case s.CallerID:
		return s.CalleeID, true
	case s.CalleeID:
		return s.CallerID, true
	default:
		return "", false
	}
}

// RecordStatus is the durable outcome of a call attempt.
type RecordStatus string

const (
	RecordRinging   RecordStatus = "ringing" // provisional, set at invite time
	RecordMissed    RecordStatus = "missed"
	RecordDeclined  RecordStatus = "declined"
	RecordCanceled  RecordStatus = "canceled"
	RecordCompleted RecordStatus = "completed"
)

// Record is the durable call-history row. It is best-effort auxiliary data;
// the in-memory Session is the source of truth while a call is live.
type Record struct {
	ID             string       `json:"id"`
	CallerID       string       `json:"caller_id"`
	CalleeID       string       `json:"callee_id"`
	Media          MediaKind    `json:"media"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Status         RecordStatus `json:"status"`

	// DurationSeconds is zero unless the call completed.
	DurationSeconds int `json:"duration"`

	StartedAt time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RecordPatch updates a record at a terminal transition.
type RecordPatch struct {
	Status          RecordStatus
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int
}

// Outbound signaling event names (server -> client).
const (
	EventRinging      = "ringing"
	EventCreated      = "created"
	EventAccepted     = "accepted"
	EventRejected     = "rejected"
	EventCanceled     = "canceled"
	EventTimeout      = "timeout"
	EventEnded        = "ended"
	EventUnavailable  = "unavailable"
	EventBusy         = "busy"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// DisplayInfo is what the callee's devices show while ringing.
// It comes from the caller's verified token claims, not from storage.
type DisplayInfo struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// RingingPayload notifies every callee device of an incoming call.
type RingingPayload struct {
	CallID         string      `json:"call_id"`
	CallerID       string      `json:"caller_id"`
	Media          MediaKind   `json:"media"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Caller         DisplayInfo `json:"caller"`
}

// CallRef is the payload for events that only reference a call.
type CallRef struct {
	CallID string `json:"call_id"`
}

// EndedPayload carries the computed duration to the other party.
type EndedPayload struct {
	CallID          string `json:"call_id"`
	DurationSeconds int    `json:"duration"`
}

// UnavailablePayload tells the caller the callee cannot be reached.
type UnavailablePayload struct {
	ToUserID string `json:"to_user_id"`
}
