package rbac

// Role names. Keep these stable; they are part of the auth contract with the
// main application that issues tokens.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
