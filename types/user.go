package types

import "time"

// Authentication methods for a user account.
const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
)

// User represents an account in the system.
// It contains identity, authentication, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Unique across all accounts.
	Email string `json:"email" db:"email"`

	// AuthMethod records how the account authenticates: "password" for
	// local accounts with a bcrypt hash, "google" for federated-only
	// accounts created from a verified Google ID token.
	AuthMethod string `json:"auth_method" db:"auth_method"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Empty for federated-only accounts. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// GoogleSubject is the stable subject identifier asserted by Google
	// for federated accounts. Empty for password-only accounts. A password
	// account may gain a subject on first federated login; the reverse
	// transition never happens.
	GoogleSubject string `json:"-" db:"google_subject"`

	// Picture is an optional profile image URL from the identity provider.
	Picture string `json:"picture,omitempty" db:"picture"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// PublicUser is the subset of User fields embedded in item listings and
// claim results.
type PublicUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the user's embeddable public identity.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
