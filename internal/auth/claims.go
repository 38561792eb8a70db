package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Identity is established upstream (the main app issues these tokens);
// the signaling process only verifies and extracts it.
//
// Username and AvatarURL ride along so the callee's ringing notification can
// show who is calling without a profile lookup.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

// Identity is the verified per-session identity handed to the signaling core.
type Identity struct {
	UserID    string
	Username  string
	AvatarURL string
	Role      string
}

func (c Claims) Identity() Identity {
	return Identity{
		UserID:    c.UserID,
		Username:  c.Username,
		AvatarURL: c.AvatarURL,
		Role:      c.Role,
	}
}
