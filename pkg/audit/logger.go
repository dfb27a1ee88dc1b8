package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/orgportal/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases resources
	Close() error
}

// NewEvent builds an event stamped with the current time and the request
// details found in ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// FromRequest fills the request fields of e from r
func (e *Event) FromRequest(r *http.Request) *Event {
	e.Method = r.Method
	e.Path = r.URL.Path
	if e.RequestID == "" {
		e.RequestID = contextkeys.GetRequestID(r.Context())
	}
	return e
}

// NoOp returns a logger that discards every event
func NoOp() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *Event) error { return nil }
func (noOpLogger) Close() error                                { return nil }
