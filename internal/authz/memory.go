package authz

import (
	"context"
	"fmt"
	"sync"
)

// InMemory implements Store with in-process locking. Used by tests and by
// deployments without a database DSN.
type InMemory struct {
	mu        sync.RWMutex
	grants    map[Role]map[string]struct{}
	overrides map[string]map[string]bool
	pages     map[string]PageConfig
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates a store preloaded with the compiled default role
// grants, matching what the database seeds produce. Revoking a default
// grant therefore works the same in both deployments.
func NewInMemory() *InMemory {
	grants := make(map[Role]map[string]struct{}, len(DefaultRoleGrants))
	for role, keys := range DefaultRoleGrants {
		set := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		grants[role] = set
	}
	return &InMemory{
		grants:    grants,
		overrides: make(map[string]map[string]bool),
		pages:     make(map[string]PageConfig),
	}
}

func (m *InMemory) AllGrants(ctx context.Context) (map[Role][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Role][]string, len(m.grants))
	for role, set := range m.grants {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		out[role] = keys
	}
	return out, nil
}

func (m *InMemory) Grant(ctx context.Context, role Role, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.grants[role]
	if !ok {
		set = make(map[string]struct{})
		m.grants[role] = set
	}
	if _, exists := set[permission]; exists {
		return fmt.Errorf("%w: %s already granted to %s", ErrConflict, permission, role)
	}
	set[permission] = struct{}{}
	return nil
}

func (m *InMemory) Revoke(ctx context.Context, role Role, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.grants[role]
	if !ok {
		return ErrNotFound
	}
	if _, exists := set[permission]; !exists {
		return ErrNotFound
	}
	delete(set, permission)
	return nil
}

func (m *InMemory) SetOverride(ctx context.Context, actorID, permission string, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov, ok := m.overrides[actorID]
	if !ok {
		ov = make(map[string]bool)
		m.overrides[actorID] = ov
	}
	ov[permission] = allowed
	return nil
}

func (m *InMemory) OverridesFor(ctx context.Context, actorID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ov, ok := m.overrides[actorID]
	if !ok {
		return map[string]bool{}, nil
	}
	out := make(map[string]bool, len(ov))
	for k, v := range ov {
		out[k] = v
	}
	return out, nil
}

func (m *InMemory) GetPage(ctx context.Context, pageID string) (PageConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.pages[pageID]
	if !ok {
		return PageConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *InMemory) UpsertPage(ctx context.Context, cfg PageConfig) (PageConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[cfg.PageID] = cfg
	return cfg, nil
}
