package authz

import "context"

// RolePermissionStore persists the role-permission map and per-actor
// overrides. Pairs are unique on (role, permission).
type RolePermissionStore interface {
	AllGrants(ctx context.Context) (map[Role][]string, error)
	Grant(ctx context.Context, role Role, permission string) error
	Revoke(ctx context.Context, role Role, permission string) error
	SetOverride(ctx context.Context, actorID, permission string, allowed bool) error
	OverridesFor(ctx context.Context, actorID string) (map[string]bool, error)
}

// Store describes persistence required by the authorization subsystem.
type Store interface {
	RolePermissionStore
	PageStore
}
