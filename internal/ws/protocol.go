package ws

import "encoding/json"

// Envelope is the inbound wire frame (client -> server). Data stays raw until
// the frame type is known; relay payloads are forwarded without re-encoding.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound frame types.
const (
	TypeInvite       = "invite"
	TypeAccept       = "accept"
	TypeReject       = "reject"
	TypeCancel       = "cancel"
	TypeEnd          = "end"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

type invitePayload struct {
	ToUserID       string `json:"to_user_id"`
	Media          string `json:"media"`
	ConversationID string `json:"conversation_id"`
}

type callRefPayload struct {
	CallID string `json:"call_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}
