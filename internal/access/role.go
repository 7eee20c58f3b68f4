package access

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the single authorization role of an identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Numeric role codes stored on profiles.
const (
	CodeAdmin = 1
	CodeUser  = 2
)

// RoleFromCode maps a stored role code. Anything other than 1 is a user.
func RoleFromCode(code int) Role {
	if code == CodeAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Code is the inverse of RoleFromCode.
func (r Role) Code() int {
	if r == RoleAdmin {
		return CodeAdmin
	}
	return CodeUser
}

// ParseRole accepts a role name as stored in the roles table.
func ParseRole(name string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// Resolution is the state of a role lookup as seen by a view: still
// resolving, resolved to a role, or resolved to none.
type Resolution struct {
	Resolved bool `json:"resolved"`
	Role     Role `json:"role,omitempty"`
}

// Resolving is the zero Resolution.
func Resolving() Resolution {
	return Resolution{}
}

func Resolved(role Role, ok bool) Resolution {
	if !ok {
		return Resolution{Resolved: true}
	}
	return Resolution{Resolved: true, Role: role}
}

// HasRole reports whether a concrete role was resolved.
func (r Resolution) HasRole() bool {
	return r.Resolved && r.Role != ""
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID    uuid.UUID
	Email     string
	SessionID string
	Role      Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
