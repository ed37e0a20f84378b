// Package audit records auth-lifecycle events (logins, rotations,
// revocations) for after-the-fact review. Writes are best-effort and never
// affect the calling operation.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskvault/backend/internal/audit/domain"
	auditrepo "taskvault/backend/internal/audit/repository"
)

// Audited actions. Resource is always "auth" for these.
const (
	ActionUserRegistered             = "user_registered"
	ActionLoginSuccess               = "login_success"
	ActionLoginFailure               = "login_failure"
	ActionTokenRefreshed             = "token_refreshed"
	ActionRefreshRejected            = "refresh_rejected"
	ActionSessionRevokedBadSignature = "session_revoked_bad_signature"
	ActionLogoutDevice               = "logout_device"
	ActionLogoutAll                  = "logout_all"
)

// ResourceAuth is the resource tag for auth-lifecycle events.
const ResourceAuth = "auth"

// IPExtractor returns the client IP for the current request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *slog.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor
// for client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WarnContext(ctx, "audit: failed to log event",
			slog.String("action", action),
			slog.String("resource", resource),
			slog.Any("error", err))
	}
}

// Noop is an AuditLogger that discards events. Used when no database is
// configured (e.g. in tests).
type Noop struct{}

func (Noop) LogEvent(context.Context, string, string, string, string) {}
