package audit

import (
	"context"

	"github.com/platinummonkey/orgportal/pkg/observability"
)

// LogLogger writes audit events as structured log lines
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit logger backed by the application logger
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("component", "audit")}
}

// Log emits event at info level, or warn level for denials
func (l *LogLogger) Log(ctx context.Context, event *Event) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
		"timestamp":  event.Timestamp,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.OrganizationID != "" {
		fields["org_id"] = event.OrganizationID
	}
	if event.TargetID != "" {
		fields["target_id"] = event.TargetID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Path != "" {
		fields["method"] = event.Method
		fields["path"] = event.Path
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	if event.Status == EventStatusDenied {
		entry.Warn(msg)
	} else {
		entry.Info(msg)
	}
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
