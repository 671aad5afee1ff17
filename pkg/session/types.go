package session

import (
	"fmt"
	"strings"
)

// Role is the closed set of privilege levels a visitor can hold.
// Roles form a total order: RoleAnonymous < RoleUser < RoleAdmin.
type Role int

const (
	// RoleAnonymous is a visitor with no authenticated identity.
	RoleAnonymous Role = iota

	// RoleUser is an ordinary authenticated user.
	RoleUser

	// RoleAdmin is an administrator.
	RoleAdmin
)

// Satisfies reports whether r meets or exceeds the required role.
func (r Role) Satisfies(required Role) bool {
	return r >= required
}

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseRole maps a wire role string to a Role. Unknown or empty values
// parse as RoleAnonymous with an error, so a malformed server response
// can never grant privilege.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "anonymous", "":
		return RoleAnonymous, nil
	default:
		return RoleAnonymous, fmt.Errorf("unknown role %q", s)
	}
}

// User is the authenticated identity as reported by the identity
// service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"-"`

	// RawRole is the role string as received on the wire. Role is the
	// parsed form; RawRole is kept for diagnostics only.
	RawRole string `json:"role"`
}

// Credentials are the fields sent to the identity service on login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the fields sent to the identity service on register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Status is the lifecycle state of the session check.
type Status int

const (
	// StatusUnknown means no verification has ever run.
	StatusUnknown Status = iota

	// StatusChecking means exactly one verification request is in flight.
	StatusChecking

	// StatusResolved means the last verification completed: either a
	// user is present or the visitor is confirmed anonymous.
	StatusResolved

	// StatusError means the last verification failed in transit. The
	// visitor's identity is unknown, not anonymous.
	StatusError
)

// String returns a short name for the status, used in logs and the
// sync wire format.
func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusResolved:
		return "resolved"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable view of the store handed to subscribers.
type State struct {
	User    *User
	Status  Status
	LastErr error
}

// Role returns the effective role of the state: the user's role when
// one is present, RoleAnonymous otherwise.
func (s State) Role() Role {
	if s.User == nil {
		return RoleAnonymous
	}
	return s.User.Role
}

// Authenticated reports whether a user is present.
func (s State) Authenticated() bool {
	return s.User != nil
}
