package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
)

var reqAdmin = authz.Requirement{Roles: []authz.Role{authz.RoleAdmin}, Permission: authz.PermPermissionsManage}

type grantBody struct {
	Permission string `json:"permission"`
}

type overrideBody struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

type pagePatchBody struct {
	Visible      *bool   `json:"visible"`
	RequiredRole *string `json:"required_role"`
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureAccess(w, r, authz.Requirement{}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": authz.Catalog})
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureAccess(w, r, authz.Requirement{}) {
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	set, err := a.authz.ResolvePermissions(r.Context(), actor)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id":    actor.ID,
		"role":        actor.Role,
		"permissions": set.Keys(),
	})
}

// handleRoleResource covers /v1/roles/{role}/permissions and
// /v1/roles/{role}/permissions/{permission}.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !a.ensureAccess(w, r, reqAdmin) {
		return
	}
	role := authz.Role(parts[0])
	actor, _ := authz.ActorFromContext(r.Context())

	switch {
	case len(parts) == 2 && r.Method == http.MethodPost:
		var body grantBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.authz.Grant(r.Context(), actor, role, body.Permission); err != nil {
			handleAuthzError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"role": role, "permission": body.Permission})
	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := a.authz.Revoke(r.Context(), actor, role, parts[2]); err != nil {
			handleAuthzError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// handleActorResource covers /v1/actors/{id}/overrides.
func (a *API) handleActorResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actors/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "overrides" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !a.ensureAccess(w, r, reqAdmin) {
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodPut:
		var body overrideBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.authz.SetOverride(r.Context(), actor, parts[0], body.Permission, body.Allowed); err != nil {
			handleAuthzError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"actor_id":   parts[0],
			"permission": body.Permission,
			"allowed":    body.Allowed,
		})
	case http.MethodGet:
		overrides, err := a.authz.OverridesFor(r.Context(), parts[0])
		if err != nil {
			handleAuthzError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"actor_id": parts[0], "overrides": overrides})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// handlePagesCollection lists the pages visible to the request actor.
// Anonymous callers see the public subset.
func (a *API) handlePagesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureAccess(w, r, authz.Requirement{Public: true}) {
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())

	var visible []authz.PageConfig
	for _, def := range authz.DefaultPages() {
		cfg, err := a.authz.Pages().Get(r.Context(), def.PageID)
		if err != nil {
			handleAuthzError(w, r, err)
			return
		}
		if cfg.VisibleTo(actor) {
			visible = append(visible, cfg)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].PageID < visible[j].PageID })
	writeJSON(w, http.StatusOK, map[string]any{"items": visible})
}

// handlePageResource covers /v1/pages/{id}: GET returns the effective
// configuration, PATCH applies a partial update.
func (a *API) handlePageResource(w http.ResponseWriter, r *http.Request) {
	pageID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/pages/"), "/")
	if pageID == "" || strings.Contains(pageID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.ensureAccess(w, r, authz.Requirement{Public: true}) {
			return
		}
		cfg, err := a.authz.Pages().Get(r.Context(), pageID)
		if err != nil {
			handleAuthzError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPatch:
		if !a.ensureAccess(w, r, reqAdmin) {
			return
		}
		var body pagePatchBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		patch := authz.PagePatch{Visible: body.Visible}
		if body.RequiredRole != nil {
			role := authz.Role(*body.RequiredRole)
			patch.RequiredRole = &role
		}
		cfg, err := a.authz.Pages().Upsert(r.Context(), pageID, patch)
		if err != nil {
			handleAuthzError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}
