package httpapi

import (
	"net/http"
	"testing"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
)

func TestPermissionCatalogRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/permissions", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	token := api.obtainToken("visitor-1", authz.RoleVisitor)
	resp = api.get("/v1/permissions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status: %d", resp.StatusCode)
	}
	body := decode[struct {
		Items []authz.Permission `json:"items"`
	}](t, resp)
	if len(body.Items) != len(authz.Catalog) {
		t.Fatalf("expected full catalog, got %d entries", len(body.Items))
	}
}

func TestGrantRevokeRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	resp := api.post("/v1/roles/assistant/permissions", map[string]any{
		"permission": authz.PermSponsorshipsManage,
	}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("grant status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate grants conflict.
	resp = api.post("/v1/roles/assistant/permissions", map[string]any{
		"permission": authz.PermSponsorshipsManage,
	}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown permissions are rejected.
	resp = api.post("/v1/roles/assistant/permissions", map[string]any{
		"permission": "reports.export",
	}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown permission, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Granting to the admin role is rejected; admins already hold everything.
	resp = api.post("/v1/roles/admin/permissions", map[string]any{
		"permission": authz.PermChildrenView,
	}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for admin grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/v1/roles/assistant/permissions/"+authz.PermSponsorshipsManage, nil, admin)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/v1/roles/assistant/permissions/"+authz.PermSponsorshipsManage, nil, admin)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second revoke, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRevokedDefaultGrantLeavesResolvedSet(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))
	sponsor := bearerHeader(api.obtainToken("sponsor-1", authz.RoleSponsor))

	type mePayload struct {
		Permissions []string `json:"permissions"`
	}
	hasPerm := func(perms []string, key string) bool {
		for _, p := range perms {
			if p == key {
				return true
			}
		}
		return false
	}

	resp := api.get("/v1/me/permissions", nil, sponsor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me/permissions status: %d", resp.StatusCode)
	}
	before := decode[mePayload](t, resp)
	if !hasPerm(before.Permissions, authz.PermMessagesSend) {
		t.Fatalf("sponsor missing default grant before revoke: %v", before.Permissions)
	}

	resp = api.do(http.MethodDelete, "/v1/roles/sponsor/permissions/"+authz.PermMessagesSend, nil, admin)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/me/permissions", nil, sponsor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me/permissions status after revoke: %d", resp.StatusCode)
	}
	after := decode[mePayload](t, resp)
	if hasPerm(after.Permissions, authz.PermMessagesSend) {
		t.Fatalf("revoked permission still resolved: %v", after.Permissions)
	}
	if !hasPerm(after.Permissions, authz.PermMessagesView) {
		t.Fatalf("unrelated grant lost after revoke: %v", after.Permissions)
	}
}

func TestOverrideEndpoint(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	resp := api.do(http.MethodPut, "/v1/actors/sponsor-1/overrides", map[string]any{
		"permission": authz.PermMediaManage,
		"allowed":    true,
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("override status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/v1/actors/sponsor-1/overrides", map[string]any{
		"permission": "reports.export",
		"allowed":    true,
	}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown permission, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/actors/sponsor-1/overrides", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status: %d", resp.StatusCode)
	}
	body := decode[struct {
		Overrides map[string]bool `json:"overrides"`
	}](t, resp)
	if allowed, ok := body.Overrides[authz.PermMediaManage]; !ok || !allowed {
		t.Fatalf("expected stored override, got %v", body.Overrides)
	}
}

func TestPageVisibilityEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	// Anonymous callers see only the public pages.
	resp := api.get("/v1/pages", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pages status: %d", resp.StatusCode)
	}
	body := decode[struct {
		Items []authz.PageConfig `json:"items"`
	}](t, resp)
	for _, cfg := range body.Items {
		if cfg.RequiredRole != authz.RolePublic {
			t.Fatalf("anonymous listing leaked %s", cfg.PageID)
		}
	}

	// Admin hides a public page; anonymous callers lose it.
	hidden := false
	resp = api.do(http.MethodPatch, "/v1/pages/donations", map[string]any{
		"visible": &hidden,
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status: %d", resp.StatusCode)
	}
	cfg := decode[authz.PageConfig](t, resp)
	if cfg.Visible {
		t.Fatal("expected page hidden")
	}
	if cfg.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at stamp")
	}

	resp = api.get("/v1/pages", nil, nil)
	body = decode[struct {
		Items []authz.PageConfig `json:"items"`
	}](t, resp)
	for _, c := range body.Items {
		if c.PageID == "donations" {
			t.Fatal("hidden page still visible to anonymous caller")
		}
	}

	// Hidden pages stay visible to admins.
	resp = api.get("/v1/pages", nil, admin)
	body = decode[struct {
		Items []authz.PageConfig `json:"items"`
	}](t, resp)
	found := false
	for _, c := range body.Items {
		if c.PageID == "donations" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected admin to see hidden page")
	}

	// Unknown pages are rejected.
	resp = api.do(http.MethodPatch, "/v1/pages/reports", map[string]any{
		"visible": &hidden,
	}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown page, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Non-admins cannot patch.
	sponsor := bearerHeader(api.obtainToken("sponsor-1", authz.RoleSponsor))
	resp = api.do(http.MethodPatch, "/v1/pages/home", map[string]any{
		"visible": &hidden,
	}, sponsor)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
