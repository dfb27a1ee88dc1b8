package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Organization events
	EventTypeOrgCreate            EventType = "org.create"
	EventTypeOrgMemberAdd         EventType = "org.member_add"
	EventTypeOrgMemberRoleChange  EventType = "org.member_role_change"
	EventTypeOrgMemberRemove      EventType = "org.member_remove"
	EventTypeOrgOwnershipTransfer EventType = "org.ownership_transfer"

	// Profile events
	EventTypeProfileUpdate EventType = "profile.update"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and scope
	UserID         string `json:"user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	TargetID       string `json:"target_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
