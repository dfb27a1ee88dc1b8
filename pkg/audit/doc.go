// Package audit records security-relevant events of the portal.
//
// Access denials raised by the rbac guards and every organization or
// profile mutation are written as Events. A DBLogger persists them to the
// audit_events table, where the organization admin page reads them back
// with ListByOrganization. A LogLogger mirrors the same events into the
// structured application log; MultiLogger fans one event out to both.
//
// Usage:
//
//	event := audit.NewEvent(ctx, audit.EventTypeOrgMemberRemove, audit.EventStatusSuccess).FromRequest(r)
//	event.UserID = actor.ID
//	event.OrganizationID = orgID
//	event.TargetID = memberID
//	if err := logger.Log(ctx, event); err != nil {
//		log.WithError(err).Warn("Failed to record audit event")
//	}
package audit
