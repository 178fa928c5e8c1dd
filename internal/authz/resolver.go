package authz

// Resolver computes the effective permission set for one actor from a
// snapshot of the role-permission map. It is pure: same actor, same output.
type Resolver struct {
	grants map[Role]map[string]struct{}
}

// NewResolver builds a resolver over a role-permission snapshot. Pass nil to
// resolve against the compiled-in defaults.
func NewResolver(grants map[Role][]string) *Resolver {
	if grants == nil {
		grants = DefaultRoleGrants
	}
	indexed := make(map[Role]map[string]struct{}, len(grants))
	for role, keys := range grants {
		set := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		indexed[role] = set
	}
	return &Resolver{grants: indexed}
}

// Resolve returns the actor's effective permissions.
//
// Inactive actors resolve to the empty set before anything else is
// considered. Admins resolve to the universal set regardless of overrides.
// Everyone else starts from their role's grants, then overrides apply:
// an explicit true grants, an explicit false revokes.
func (r *Resolver) Resolve(actor *Actor) PermissionSet {
	if actor == nil || !actor.Active {
		return PermissionSet{}
	}
	if actor.Role == RoleAdmin {
		return UniversalSet()
	}

	set := make(PermissionSet)
	for key := range r.grants[actor.Role] {
		set[key] = struct{}{}
	}
	for key, allowed := range actor.Overrides {
		if !KnownPermission(key) {
			continue
		}
		if allowed {
			set[key] = struct{}{}
		} else {
			delete(set, key)
		}
	}
	return set
}
