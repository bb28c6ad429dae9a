package model

import "fmt"

// Role is the closed set of account kinds. Anything outside it is rejected by ParseRole.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"` // false: student pending approval, teacher suspended
	Domain string `json:"domain,omitempty"`
}

// DisplayName falls back to the email when no name was registered.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
