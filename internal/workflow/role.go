package workflow

import "errors"

// Role is the actor role handed to the core by an external identity mechanism.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ErrInsufficientRole is returned when the actor may not run a command.
var ErrInsufficientRole = errors.New("insufficient role")

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string {
	return string(r)
}

// ParseRole resolves raw into a Role. Anything other than an exact "admin" or
// "user" resolves to RoleUser and ok is false. Surrounding whitespace is not
// trimmed, so " admin" is not an admin.
func ParseRole(raw string) (role Role, ok bool) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return RoleUser, false
	}
}

// Action is a command on the order surface that is gated by role.
type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionTransition Action = "transition"
	ActionDelete     Action = "delete"
)

// Authorize checks the role gate for action. Transitions still need Evaluate
// for the graph check.
func Authorize(action Action, role Role) error {
	switch action {
	case ActionCreate, ActionRead:
		if role.Valid() {
			return nil
		}
	case ActionTransition, ActionDelete:
		if role == RoleAdmin {
			return nil
		}
	}
	return ErrInsufficientRole
}
