package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskvault/backend/internal/session/domain"
)

// PostgresRepository persists sessions in the device_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, insertSessionSQL, insertSessionArgs(s)...)
	return err
}

const insertSessionSQL = `INSERT INTO device_sessions
	(id, user_id, device_id, refresh_token_hash, user_agent, ip_address, last_used_at, expires_at, revoked, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func insertSessionArgs(s *domain.Session) []interface{} {
	return []interface{}{
		s.ID, s.UserID, s.DeviceID, s.RefreshTokenHash,
		nullString(s.UserAgent), nullString(s.IPAddress),
		s.LastUsedAt, s.ExpiresAt, s.Revoked, s.CreatedAt, s.UpdatedAt,
	}
}

// FindActiveByFingerprint returns the non-revoked, non-expired session for
// the fingerprint, provided its owning user is still active; nil otherwise.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT ds.id, ds.user_id, ds.device_id, ds.refresh_token_hash, ds.user_agent, ds.ip_address,
		        ds.last_used_at, ds.expires_at, ds.revoked, ds.created_at, ds.updated_at
		 FROM device_sessions ds
		 JOIN users u ON ds.user_id = u.id
		 WHERE ds.refresh_token_hash = $1 AND ds.revoked = FALSE AND ds.expires_at > NOW() AND u.is_active = TRUE`,
		fingerprint)
	var s domain.Session
	var userAgent, ipAddress sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.RefreshTokenHash, &userAgent, &ipAddress,
		&s.LastUsedAt, &s.ExpiresAt, &s.Revoked, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.UserAgent = userAgent.String
	s.IPAddress = ipAddress.String
	return &s, nil
}

// Revoke marks the session as revoked. Revoking an already-revoked or
// missing session is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked = TRUE, updated_at = NOW() WHERE id = $1", sessionID)
	return err
}

// RevokeAllForUser revokes every session of the user.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked = TRUE, updated_at = NOW() WHERE user_id = $1", userID)
	return err
}

// RevokeForDevice revokes the user's sessions for one device.
func (r *PostgresRepository) RevokeForDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked = TRUE, updated_at = NOW() WHERE user_id = $1 AND device_id = $2",
		userID, deviceID)
	return err
}

// Rotate retires the old session and inserts its replacement in a single
// transaction. The revoke is a compare-and-revoke: it only matches the row
// while revoked = FALSE, so of two concurrent rotations of the same token at
// most one commits; the loser gets ErrAlreadyRevoked and no replacement row.
func (r *PostgresRepository) Rotate(ctx context.Context, oldSessionID string, next *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE device_sessions SET revoked = TRUE, updated_at = NOW() WHERE id = $1 AND revoked = FALSE",
		oldSessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyRevoked
	}

	if _, err := tx.ExecContext(ctx, insertSessionSQL, insertSessionArgs(next)...); err != nil {
		return fmt.Errorf("insert replacement session: %w", err)
	}

	return tx.Commit()
}

// TouchLastUsed updates the session's last-used timestamp. Best-effort.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET last_used_at = $2, updated_at = NOW() WHERE id = $1", sessionID, at)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
