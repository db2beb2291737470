package models

import "time"

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is one of the known states.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Usable reports whether the account may log in and make requests: it must
// be flagged active and be in the active lifecycle state.
func (u *User) Usable() bool {
	return u != nil && u.IsActive && u.Status == UserStatusActive
}
