// Package access defines board roles and the actions they allow.
package access

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

const (
	// ActionView covers reading a board, its tasks, and its activity feed.
	ActionView Action = "view"
	// ActionEdit covers list/task mutations and member additions.
	ActionEdit Action = "edit"
	// ActionManage covers updating or deleting the board itself.
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleMember:
		return action == ActionView || action == ActionEdit
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}
