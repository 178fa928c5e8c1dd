package authz

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the coarse access level assigned to an actor. The admin role
// implicitly holds every permission in the catalog.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAssistant Role = "assistant"
	RoleSponsor   Role = "sponsor"
	RoleVisitor   Role = "visitor"

	// RolePublic is only valid as a page requirement, never as an actor role.
	RolePublic Role = "public"
)

// roleRank orders roles for page visibility checks. Higher rank satisfies
// lower requirements.
var roleRank = map[Role]int{
	RolePublic:    0,
	RoleVisitor:   1,
	RoleSponsor:   2,
	RoleAssistant: 3,
	RoleAdmin:     4,
}

// ParseRole normalizes and validates an actor role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	switch r {
	case RoleAdmin, RoleAssistant, RoleSponsor, RoleVisitor:
		return r, nil
	}
	return "", fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, s)
}

// ParsePageRole validates a page requirement role (public allowed).
func ParsePageRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	switch r {
	case RolePublic, RoleSponsor, RoleAssistant, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unsupported page role %q", ErrInvalidInput, s)
}

// Elevated reports whether the role is trusted with administrative surfaces.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleAssistant
}

// AtLeast reports whether the role satisfies a minimum page requirement.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// Actor is an already-identified caller: role, per-actor permission
// overrides, and an active flag. Credential verification happens elsewhere;
// this package only consumes the resolved identity.
type Actor struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Overrides map[string]bool `json:"overrides,omitempty"`
	Active    bool            `json:"active"`
}

// PermissionSet is the effective set of permission keys for one actor.
type PermissionSet map[string]struct{}

// Has reports membership.
func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the set in a stable order.
func (s PermissionSet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
