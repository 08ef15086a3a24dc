// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Identity comes from one of two places: a password set at registration, or a
// Google OAuth login. A user always has at least one of PasswordHash and
// GoogleID — never neither. The UNIQUE constraints on email and google_id in
// the DB ensure one email / one Google account maps to exactly one row.
//
// PasswordHash and GoogleID carry `json:"-"` so they can never leak into an
// API response, no matter which handler serializes the struct.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	GoogleID     string     `json:"-"` // Google's stable "sub" claim, empty for password-only accounts
	ProfilePic   string     `json:"profile_pic,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"` // nil until the first login
}

// HasCredential reports whether the user can authenticate at all.
// A row violating this is a data bug, not a valid state.
func (u *User) HasCredential() bool {
	return u.PasswordHash != "" || u.GoogleID != ""
}
