package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service exposes the authorization operations: permission resolution,
// access checks, role-permission administration and the page registry.
// Mutations to the role-permission map and to overrides require an admin
// actor.
type Service struct {
	store Store
	pages *PageRegistry
}

// NewService constructs the authorization service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("authz store is required")
	}
	return &Service{store: store, pages: NewPageRegistry(store)}, nil
}

// Pages returns the page visibility registry.
func (s *Service) Pages() *PageRegistry { return s.pages }

// ResolverSnapshot loads the current role-permission map and returns a pure
// resolver over it. The store is the source of truth so that revoking a
// grant removes it from resolution; the compiled defaults apply only while
// the store holds no grant rows at all (a database the seeds have not
// reached yet).
func (s *Service) ResolverSnapshot(ctx context.Context) (*Resolver, error) {
	stored, err := s.store.AllGrants(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return NewResolver(nil), nil
	}
	grants := make(map[Role][]string, len(stored))
	for role, keys := range stored {
		grants[role] = append([]string(nil), keys...)
	}
	return NewResolver(grants), nil
}

// ResolvePermissions computes the effective permission set for the actor.
func (s *Service) ResolvePermissions(ctx context.Context, actor *Actor) (PermissionSet, error) {
	resolver, err := s.ResolverSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(actor), nil
}

// CheckAccess evaluates a requirement against the actor using the current
// role-permission map.
func (s *Service) CheckAccess(ctx context.Context, actor *Actor, req Requirement) (Decision, error) {
	resolver, err := s.ResolverSnapshot(ctx)
	if err != nil {
		return Decision{}, err
	}
	return NewGuard(resolver).Check(actor, req), nil
}

// Grant adds a (role, permission) pair. Admin only; unknown permissions and
// the admin role itself are rejected (admins hold everything implicitly).
func (s *Service) Grant(ctx context.Context, acting *Actor, role Role, permission string) error {
	if err := requireAdmin(acting); err != nil {
		return err
	}
	role, permission, err := normalizeGrant(role, permission)
	if err != nil {
		return err
	}
	return s.store.Grant(ctx, role, permission)
}

// Revoke removes a (role, permission) pair. Admin only.
func (s *Service) Revoke(ctx context.Context, acting *Actor, role Role, permission string) error {
	if err := requireAdmin(acting); err != nil {
		return err
	}
	role, permission, err := normalizeGrant(role, permission)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, role, permission)
}

// SetOverride writes a per-actor permission exception. Admin only; the
// permission key must exist in the catalog (the override map is a closed
// enumeration at the write boundary).
func (s *Service) SetOverride(ctx context.Context, acting *Actor, actorID, permission string, allowed bool) error {
	if err := requireAdmin(acting); err != nil {
		return err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	permission = strings.TrimSpace(permission)
	if !KnownPermission(permission) {
		return fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, permission)
	}
	return s.store.SetOverride(ctx, actorID, permission, allowed)
}

// OverridesFor returns the persisted override map for one actor.
func (s *Service) OverridesFor(ctx context.Context, actorID string) (map[string]bool, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	return s.store.OverridesFor(ctx, actorID)
}

func requireAdmin(acting *Actor) error {
	if acting == nil || !acting.Active {
		return ErrUnauthenticated
	}
	if acting.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func normalizeGrant(role Role, permission string) (Role, string, error) {
	parsed, err := ParseRole(string(role))
	if err != nil {
		return "", "", err
	}
	if parsed == RoleAdmin {
		return "", "", fmt.Errorf("%w: admin role holds all permissions implicitly", ErrInvalidInput)
	}
	permission = strings.TrimSpace(permission)
	if !KnownPermission(permission) {
		return "", "", fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, permission)
	}
	return parsed, permission, nil
}
