// Package event defines the auth event pipeline: a plain event record plus
// emitter implementations (Kafka, OTel Logs) used best-effort by the services.
package event

import (
	"context"
	"time"
)

// Source identifies this service in emitted events.
const Source = "taskvault-api"

// Event types emitted by the auth service.
const (
	TypeUserRegistered  = "user_registered"
	TypeLoginSuccess    = "login_success"
	TypeLoginFailure    = "login_failure"
	TypeTokenRefreshed  = "token_refreshed"
	TypeRefreshRejected = "refresh_rejected"
	TypeSessionRevoked  = "session_revoked"
	TypeLogout          = "logout"
)

// Event is a single auth lifecycle event. Serialized as JSON on the wire
// (Kafka message value, Loki log line).
type Event struct {
	UserID    string    `json:"userId,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds an event with Source and CreatedAt filled in.
func New(eventType, userID string) *Event {
	return &Event{
		UserID:    userID,
		EventType: eventType,
		Source:    Source,
		CreatedAt: time.Now().UTC(),
	}
}

// Emitter emits auth events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, event *Event) error
}
