// Package model defines the data structures used throughout the application.
package model

import "time"

// AuthMethod is the channel an account was first created through.
// It is fixed at creation and never changed afterwards.
type AuthMethod string

const (
	AuthMethodEmail  AuthMethod = "email"
	AuthMethodGoogle AuthMethod = "google"
)

// Valid reports whether m is one of the known methods.
func (m AuthMethod) Valid() bool {
	return m == AuthMethodEmail || m == AuthMethodGoogle
}

// Account represents a registered user.
//
// WHY IS EMAIL THE NATURAL KEY?
// Both sign-in channels end with a verified email address: the OTP flow
// proves control of the mailbox, Google asserts email_verified. The UNIQUE
// constraint on email in the DB guarantees one account per address, no
// matter which channel gets there first.
//
// WHY DateOfBirth *time.Time?
// Email sign-ups must provide it; Google sign-ups never do. A nil pointer
// keeps "not provided" distinct from the zero date.
type Account struct {
	ID          string     `json:"id"          db:"id"`
	Email       string     `json:"email"       db:"email"`
	Name        string     `json:"name"        db:"name"`
	DateOfBirth *time.Time `json:"dob,omitempty" db:"dob"`
	AuthMethod  AuthMethod `json:"authType"    db:"auth_method"`
	CreatedAt   time.Time  `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"   db:"updated_at"`
}
