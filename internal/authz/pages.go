package authz

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PageConfig is the visibility configuration for one logical page.
type PageConfig struct {
	PageID       string    `json:"page_id"`
	Visible      bool      `json:"visible"`
	RequiredRole Role      `json:"required_role"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PagePatch is a partial update applied by Upsert. Nil fields keep their
// current (or default) value.
type PagePatch struct {
	Visible      *bool
	RequiredRole *Role
}

// defaultPages is the compiled-in page catalog. Upserting a page_id outside
// this list is rejected.
var defaultPages = map[string]PageConfig{
	"home":         {PageID: "home", Visible: true, RequiredRole: RolePublic},
	"children":     {PageID: "children", Visible: true, RequiredRole: RolePublic},
	"donations":    {PageID: "donations", Visible: true, RequiredRole: RolePublic},
	"sponsorships": {PageID: "sponsorships", Visible: true, RequiredRole: RoleSponsor},
	"messages":     {PageID: "messages", Visible: true, RequiredRole: RoleSponsor},
	"media":        {PageID: "media", Visible: true, RequiredRole: RoleAssistant},
	"statistics":   {PageID: "statistics", Visible: true, RequiredRole: RoleAssistant},
	"settings":     {PageID: "settings", Visible: true, RequiredRole: RoleAdmin},
	"admin":        {PageID: "admin", Visible: true, RequiredRole: RoleAdmin},
}

// DefaultPages returns a copy of the compiled page catalog.
func DefaultPages() []PageConfig {
	out := make([]PageConfig, 0, len(defaultPages))
	for _, cfg := range defaultPages {
		out = append(out, cfg)
	}
	return out
}

// PageStore persists per-page configuration rows.
type PageStore interface {
	GetPage(ctx context.Context, pageID string) (PageConfig, error)
	UpsertPage(ctx context.Context, cfg PageConfig) (PageConfig, error)
}

// PageRegistry resolves page configuration, falling back to compiled
// defaults when no row has been persisted yet.
type PageRegistry struct {
	store PageStore
	now   func() time.Time
}

// NewPageRegistry constructs a registry over a store.
func NewPageRegistry(store PageStore) *PageRegistry {
	return &PageRegistry{store: store, now: time.Now}
}

// Get returns the persisted configuration, or the compiled default when
// nothing has been written for the page yet.
func (r *PageRegistry) Get(ctx context.Context, pageID string) (PageConfig, error) {
	pageID = strings.TrimSpace(pageID)
	def, known := defaultPages[pageID]
	cfg, err := r.store.GetPage(ctx, pageID)
	if err == nil {
		return cfg, nil
	}
	if !isNotFound(err) {
		return PageConfig{}, err
	}
	if !known {
		return PageConfig{}, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	return def, nil
}

// Upsert applies a partial update, creating the row from the compiled
// default when it does not exist yet. Idempotent on page_id; always stamps
// updated_at. Unknown pages are rejected.
func (r *PageRegistry) Upsert(ctx context.Context, pageID string, patch PagePatch) (PageConfig, error) {
	pageID = strings.TrimSpace(pageID)
	if _, known := defaultPages[pageID]; !known {
		return PageConfig{}, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	current, err := r.Get(ctx, pageID)
	if err != nil {
		return PageConfig{}, err
	}
	if patch.Visible != nil {
		current.Visible = *patch.Visible
	}
	if patch.RequiredRole != nil {
		role, err := ParsePageRole(string(*patch.RequiredRole))
		if err != nil {
			return PageConfig{}, err
		}
		current.RequiredRole = role
	}
	current.UpdatedAt = r.now().UTC()
	return r.store.UpsertPage(ctx, current)
}

// VisibleTo reports whether an actor (nil for anonymous) may view the page.
func (cfg PageConfig) VisibleTo(actor *Actor) bool {
	if !cfg.Visible {
		return actor != nil && actor.Active && actor.Role == RoleAdmin
	}
	if cfg.RequiredRole == RolePublic {
		return true
	}
	if actor == nil || !actor.Active {
		return false
	}
	return actor.Role.AtLeast(cfg.RequiredRole)
}
