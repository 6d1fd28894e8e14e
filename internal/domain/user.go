package domain

import "time"

// Role determines what a user may see and change.
type Role string

const (
	RoleUser    Role = "user"
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role sees every ticket.
func (r Role) Privileged() bool {
	return r == RoleManager || r == RoleAdmin
}

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is an account able to sign in.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	DepartmentID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the account may sign in.
func (u *User) Active() bool {
	return u.Status != UserStatusInactive
}
