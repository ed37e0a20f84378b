// Package service implements the auth orchestrator: register, login, token
// refresh with rotation, and logout. It is stateless between calls; all state
// lives in the user and session repositories.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/audit"
	"taskvault/backend/internal/event"
	"taskvault/backend/internal/security"
	sessiondomain "taskvault/backend/internal/session/domain"
	sessionrepo "taskvault/backend/internal/session/repository"
	userdomain "taskvault/backend/internal/user/domain"
	userrepo "taskvault/backend/internal/user/repository"
)

// Caller-facing error messages. Login and refresh return one generic message
// for every invalid-credential cause so responses do not reveal whether the
// account exists or which check failed.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidRefresh     = "Invalid or expired refresh token"
)

// DeviceContext carries the client-side session scope: a device identifier
// plus best-effort user-agent and IP metadata.
type DeviceContext struct {
	DeviceID  string
	UserAgent string
	IPAddress string
}

// AuthResult is the outcome of register, login, or refresh. User is nil for
// refresh; it never includes the password hash.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *userdomain.PublicUser
}

// UserRepo is the slice of the user repository the auth service needs.
type UserRepo interface {
	FindByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRepo is the slice of the session repository the auth service needs.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	FindActiveByFingerprint(ctx context.Context, fingerprint string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RevokeForDevice(ctx context.Context, userID, deviceID string) error
	Rotate(ctx context.Context, oldSessionID string, next *sessiondomain.Session) error
	TouchLastUsed(ctx context.Context, sessionID string, at time.Time) error
}

// AuthService composes the hasher, token provider, and repositories into the
// register/login/refresh/logout state machine.
type AuthService struct {
	users      UserRepo
	sessions   SessionRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	accessTTL  time.Duration
	refreshTTL time.Duration
	audit      audit.AuditLogger
	events     event.Emitter
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger and events may be nil when those sinks are not configured.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	accessTTL, refreshTTL time.Duration,
	auditLogger audit.AuditLogger,
	events event.Emitter,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Noop{}
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		audit:      auditLogger,
		events:     events,
	}
}

// Register creates a user with the given email and password and returns a
// fresh token pair. The email is stored exactly as given; lookups are
// case-sensitive, so addresses differing only in case are distinct accounts. If device is non-nil a session record is established
// exactly as on login; otherwise the refresh token is issued without one and
// becomes usable only after a later login.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string, device *DeviceContext) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Database("Failed to look up user", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Email already registered")
	}

	digest, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInternal, Message: "Failed to hash password", Err: err}
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: digest,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration may win the unique-index race after our
		// lookup saw no row.
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.Database("Failed to create user", err)
	}

	access, refresh, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	if device != nil {
		if _, err := s.recordSession(ctx, user.ID, *device, refresh); err != nil {
			return nil, err
		}
	}

	s.audit.LogEvent(ctx, user.ID, audit.ActionUserRegistered, audit.ResourceAuth, metaJSON(map[string]string{"email": email}))
	event.EmitAsync(s.events, ctx, event.New(event.TypeUserRegistered, user.ID))

	pub := user.Public()
	return &AuthResult{AccessToken: access, RefreshToken: refresh, User: &pub}, nil
}

// Login authenticates with email and password, establishes a session for the
// device, and returns a token pair. All invalid-credential causes fail with
// the same message; a failed login never touches the session store.
func (s *AuthService) Login(ctx context.Context, email, password string, device DeviceContext) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Database("Failed to look up user", err)
	}
	if user == nil || !s.hasher.Verify([]byte(password), user.PasswordHash) {
		s.audit.LogEvent(ctx, "", audit.ActionLoginFailure, audit.ResourceAuth, metaJSON(map[string]string{"email": email}))
		event.EmitAsync(s.events, ctx, event.New(event.TypeLoginFailure, ""))
		return nil, apperr.Authentication(msgInvalidCredentials)
	}

	access, refresh, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.recordSession(ctx, user.ID, device, refresh)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, user.ID, audit.ActionLoginSuccess, audit.ResourceAuth, metaJSON(map[string]string{"device_id": sess.DeviceID}))
	ev := event.New(event.TypeLoginSuccess, user.ID)
	ev.DeviceID = sess.DeviceID
	ev.SessionID = sess.ID
	event.EmitAsync(s.events, ctx, ev)

	pub := user.Public()
	return &AuthResult{AccessToken: access, RefreshToken: refresh, User: &pub}, nil
}

// Refresh rotates the refresh token: it validates the raw token against its
// session record, retires that record, and returns a brand-new pair bound to
// a new record. A given raw token can succeed at most once, including under
// concurrent calls.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, device DeviceContext) (*AuthResult, error) {
	if rawToken == "" {
		return nil, apperr.Authentication(msgInvalidRefresh)
	}

	fingerprint := security.FingerprintToken(rawToken)
	sess, err := s.sessions.FindActiveByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, apperr.Database("Failed to look up session", err)
	}
	if sess == nil {
		s.audit.LogEvent(ctx, "", audit.ActionRefreshRejected, audit.ResourceAuth, "")
		event.EmitAsync(s.events, ctx, event.New(event.TypeRefreshRejected, ""))
		return nil, apperr.Authentication(msgInvalidRefresh)
	}

	payload, err := s.tokens.Verify(rawToken, sess.UserID)
	if err != nil || payload.Type != security.TokenTypeRefresh {
		// A structurally invalid token presented against a live session looks
		// like theft or replay: retire the session before failing so the row
		// cannot be used again. If the revoke itself fails the row is still
		// live, so that failure must surface rather than hide behind the
		// generic credential error.
		if rerr := s.sessions.Revoke(ctx, sess.ID); rerr != nil {
			return nil, apperr.Database("Failed to revoke session", rerr)
		}
		s.audit.LogEvent(ctx, sess.UserID, audit.ActionSessionRevokedBadSignature, audit.ResourceAuth, metaJSON(map[string]string{"session_id": sess.ID}))
		ev := event.New(event.TypeSessionRevoked, sess.UserID)
		ev.SessionID = sess.ID
		event.EmitAsync(s.events, ctx, ev)
		return nil, apperr.Authentication(msgInvalidRefresh)
	}

	_ = s.sessions.TouchLastUsed(ctx, sess.ID, time.Now().UTC())

	access, refresh, err := s.issuePair(sess.UserID)
	if err != nil {
		return nil, err
	}
	next := s.newSession(sess.UserID, device, refresh)
	if next.DeviceID == "" {
		next.DeviceID = sess.DeviceID
	}
	if err := s.sessions.Rotate(ctx, sess.ID, next); err != nil {
		if errors.Is(err, sessionrepo.ErrAlreadyRevoked) {
			// A concurrent refresh with the same raw token won the race.
			return nil, apperr.Authentication(msgInvalidRefresh)
		}
		return nil, apperr.Database("Failed to rotate session", err)
	}

	s.audit.LogEvent(ctx, sess.UserID, audit.ActionTokenRefreshed, audit.ResourceAuth, metaJSON(map[string]string{"device_id": next.DeviceID}))
	ev := event.New(event.TypeTokenRefreshed, sess.UserID)
	ev.DeviceID = next.DeviceID
	ev.SessionID = next.ID
	event.EmitAsync(s.events, ctx, ev)

	return &AuthResult{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes sessions for the user. With a device id only that device's
// sessions are revoked; without one every session of the user is. Idempotent:
// a user with no active sessions logs out successfully.
func (s *AuthService) Logout(ctx context.Context, userID, deviceID string) error {
	if userID == "" {
		return apperr.Validation("User id is required")
	}
	var err error
	action := audit.ActionLogoutAll
	if deviceID != "" {
		err = s.sessions.RevokeForDevice(ctx, userID, deviceID)
		action = audit.ActionLogoutDevice
	} else {
		err = s.sessions.RevokeAllForUser(ctx, userID)
	}
	if err != nil {
		return apperr.Database("Failed to revoke sessions", err)
	}
	s.audit.LogEvent(ctx, userID, action, audit.ResourceAuth, metaJSON(map[string]string{"device_id": deviceID}))
	ev := event.New(event.TypeLogout, userID)
	ev.DeviceID = deviceID
	event.EmitAsync(s.events, ctx, ev)
	return nil
}

// GenerateDeviceID produces a fresh opaque device identifier for clients that
// cannot supply a stable one. No persistence.
func (s *AuthService) GenerateDeviceID() string {
	return uuid.New().String()
}

// issuePair signs an access and a refresh token for the subject.
func (s *AuthService) issuePair(userID string) (access, refresh string, err error) {
	access, err = s.tokens.Sign(userID, security.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return "", "", &apperr.Error{Kind: apperr.KindInternal, Message: "Failed to sign token", Err: err}
	}
	refresh, err = s.tokens.Sign(userID, security.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return "", "", &apperr.Error{Kind: apperr.KindInternal, Message: "Failed to sign token", Err: err}
	}
	return access, refresh, nil
}

// newSession builds an unpersisted session row for the refresh token. The
// row stores only the token's fingerprint.
func (s *AuthService) newSession(userID string, device DeviceContext, refreshToken string) *sessiondomain.Session {
	now := time.Now().UTC()
	deviceID := strings.TrimSpace(device.DeviceID)
	if deviceID == "" {
		deviceID = s.GenerateDeviceID()
	}
	return &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: security.FingerprintToken(refreshToken),
		UserAgent:        device.UserAgent,
		IPAddress:        device.IPAddress,
		LastUsedAt:       now,
		ExpiresAt:        now.Add(s.refreshTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// recordSession persists a new session row for the refresh token.
func (s *AuthService) recordSession(ctx context.Context, userID string, device DeviceContext, refreshToken string) (*sessiondomain.Session, error) {
	sess := s.newSession(userID, device, refreshToken)
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apperr.Database("Failed to create session", err)
	}
	return sess, nil
}

func metaJSON(fields map[string]string) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}
