package domain

import "time"

// Session represents one refresh credential bound to a (user, device) pair.
// A new row is created every time a refresh token is minted; rotation retires
// the old row by setting Revoked rather than deleting it, so the table keeps
// the full history. A session is active when !Revoked and ExpiresAt is in the
// future.
type Session struct {
	ID                   string
	UserID               string
	DeviceID             string
	RefreshTokenHash     string // SHA-256 fingerprint of the raw refresh token, never the token itself
	UserAgent            string // best-effort client metadata; empty when unknown
	IPAddress            string
	LastUsedAt           time.Time
	ExpiresAt            time.Time
	Revoked              bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
