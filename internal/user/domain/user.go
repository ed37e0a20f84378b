package domain

import "time"

// User represents an identity record. Inactive users are treated as
// non-existent by lookups, so the rest of the system only ever sees active
// rows.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string // empty when not provided
	LastName     string // empty when not provided
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the caller-facing view of a user. It never carries the
// password hash.
type PublicUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Public returns the caller-facing view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
