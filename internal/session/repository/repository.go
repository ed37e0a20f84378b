package repository

import (
	"context"
	"errors"
	"time"

	"taskvault/backend/internal/session/domain"
)

// ErrAlreadyRevoked is returned by Rotate when the old session was revoked
// between lookup and rotation, meaning a concurrent refresh with the same
// token won the race. Callers must treat it as an invalid token, not as
// "not found", to keep error semantics uniform.
var ErrAlreadyRevoked = errors.New("session already revoked")

// Repository defines persistence for device sessions. Revocation operations
// are idempotent: revoking an already-revoked row is a no-op, not an error.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindActiveByFingerprint returns the session whose refresh-token
	// fingerprint matches and that is not revoked, not expired, and owned by
	// an active user; nil otherwise.
	FindActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RevokeForDevice(ctx context.Context, userID, deviceID string) error
	// Rotate atomically revokes the old session and inserts the replacement.
	// The revoke is conditional on the row still being unrevoked; if a
	// concurrent rotation got there first, nothing is written and
	// ErrAlreadyRevoked is returned.
	Rotate(ctx context.Context, oldSessionID string, next *domain.Session) error
	TouchLastUsed(ctx context.Context, sessionID string, at time.Time) error
}
