package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DBLogger writes audit events to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger.
// The audit_events table is created by the storage migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts event into the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata sql.NullString
	if event.Metadata != nil {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query := `
		INSERT INTO audit_events (
			id, timestamp, event_type, status,
			user_id, org_id, target_id,
			request_id, method, path,
			message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.ID, event.Timestamp.UTC(), string(event.EventType), string(event.Status),
		nullString(event.UserID), nullString(event.OrganizationID), nullString(event.TargetID),
		nullString(event.RequestID), nullString(event.Method), nullString(event.Path),
		nullString(event.Message), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListByOrganization returns the most recent events for an organization, newest first
func (l *DBLogger) ListByOrganization(ctx context.Context, orgID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, event_type, status, user_id, org_id, target_id,
		       request_id, method, path, message, metadata
		FROM audit_events
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType, status string
		var userID, org, target, requestID, method, path, message, metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &status, &userID, &org, &target,
			&requestID, &method, &path, &message, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.EventType = EventType(eventType)
		e.Status = EventStatus(status)
		e.UserID = userID.String
		e.OrganizationID = org.String
		e.TargetID = target.String
		e.RequestID = requestID.String
		e.Method = method.String
		e.Path = path.String
		e.Message = message.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Close is a no-op; the database handle is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
