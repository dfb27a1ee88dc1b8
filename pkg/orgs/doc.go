// Package orgs manages organizations and memberships.
//
// # Overview
//
// Every organization has at least one active owner. CreateOrganization makes
// the creator the owner, and the membership mutations (UpdateMemberRole,
// RemoveMember, TransferOwnership) refuse to leave an organization without
// one, returning ErrLastOwner.
//
// Removed memberships are kept with status "removed" and grant no role.
// AddMember reactivates them.
//
// # Concurrency
//
// Each mutation runs in a transaction that first updates the organization
// row. On PostgreSQL that row lock serializes mutations of one organization;
// SQLite transactions are opened with BEGIN IMMEDIATE and serialize globally.
//
// # Usage Example
//
//	svc := orgs.NewSQLService(db,
//		orgs.WithRoleCache(roleCache),
//		orgs.WithRecorder(metrics),
//	)
//
//	created, err := svc.CreateOrganization(ctx, orgs.CreateOrgRequest{Name: "Acme Labs"}, user.ID)
//	switch {
//	case errors.Is(err, orgs.ErrSlugTaken):
//		...
//	}
//
// # Related Packages
//
//   - pkg/rbac: roles, permissions, and guards
//   - pkg/validation: request validation errors
package orgs
