package authz

// DenyReason is the internal code for a guard denial. Reasons are for
// logging and metrics only; callers render a generic "not permitted".
type DenyReason string

const (
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyRole            DenyReason = "role"
	DenyElevation       DenyReason = "elevation"
	DenyPermission      DenyReason = "permission"
)

// Requirement declares what a protected entry point demands of the caller.
// Zero value requires only an authenticated actor; set Public for anonymous
// access.
type Requirement struct {
	Public     bool
	Roles      []Role
	Elevated   bool
	Permission string
}

// Decision is the guard verdict. Reason is set only when denied.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Guard evaluates access requirements against a resolver snapshot. Check is
// stateless and side-effect-free, safe under arbitrary concurrency.
type Guard struct {
	resolver *Resolver
}

// NewGuard wraps a resolver. A nil resolver falls back to compiled defaults.
func NewGuard(resolver *Resolver) *Guard {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Guard{resolver: resolver}
}

// Check evaluates the requirement in a fixed order; the first failing check
// wins and evaluation stops there.
//
// An inactive actor is treated as unauthenticated: its permission set is
// empty and it cannot satisfy any role requirement.
func (g *Guard) Check(actor *Actor, req Requirement) Decision {
	if actor == nil || !actor.Active {
		if req.Public {
			return allow()
		}
		return deny(DenyUnauthenticated)
	}

	if len(req.Roles) > 0 && !roleIn(actor.Role, req.Roles) {
		return deny(DenyRole)
	}

	if req.Elevated && !actor.Role.Elevated() {
		return deny(DenyElevation)
	}

	if req.Permission != "" && actor.Role != RoleAdmin {
		if !g.resolver.Resolve(actor).Has(req.Permission) {
			return deny(DenyPermission)
		}
	}

	return allow()
}

func roleIn(role Role, allowed []Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
