package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"taskvault/backend/internal/event"
)

// NewEventEmitter returns an Emitter that sends auth events as OTel log records
// via the given LoggerProvider. If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) event.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("taskvault.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *event.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return nil
	}
	rec := otellog.Record{}
	if !ev.CreatedAt.IsZero() {
		rec.SetTimestamp(ev.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(ev.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(ev.Metadata))
	}
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	if ev.DeviceID != "" {
		rec.AddAttributes(otellog.String("device_id", ev.DeviceID))
	}
	if ev.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", ev.SessionID))
	}
	if ev.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", ev.EventType))
	}
	if ev.Source != "" {
		rec.AddAttributes(otellog.String("source", ev.Source))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
