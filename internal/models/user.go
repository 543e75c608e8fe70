// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import "time"

// Role represents a user's permission level in the editor.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// User is an editor account. The ID is the identity provider's user ID
// (a Discord snowflake in production), so it is stored as an opaque string.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editor returns the identity used for locks and contributor attribution.
func (u *User) Editor() Editor {
	return Editor{UserID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
