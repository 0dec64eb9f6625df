package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a local user created on the first successful vendor login for a
// username. Users are never deleted by the bridge.
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Username    string     `json:"username" db:"username"`
	IsAdmin     bool       `json:"isAdmin" db:"is_admin"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(username string, isAdmin bool) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Username:  username,
		IsAdmin:   isAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordLogin stamps a successful login
func (u *User) RecordLogin(at time.Time) {
	at = at.UTC()
	u.LastLoginAt = &at
	u.UpdatedAt = at
}
