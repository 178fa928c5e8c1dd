package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/radiopv/assistantpv-sub000/internal/audit"
	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
	"github.com/radiopv/assistantpv-sub000/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("SPONSOR_AUTH_SECRET", "test-secret")
	authz.ResetSecretForTests()

	authzSvc, err := authz.NewService(authz.NewInMemory())
	if err != nil {
		t.Fatalf("authz service: %v", err)
	}
	recorder, err := audit.NewRecorder(audit.NewInMemory())
	if err != nil {
		t.Fatalf("audit recorder: %v", err)
	}
	sponsorSvc, err := sponsorship.NewService(sponsorship.NewInMemory(), recorder,
		sponsorship.WithStream(stream.New()))
	if err != nil {
		t.Fatalf("sponsorship service: %v", err)
	}

	api := New(ReadyProbe{}, "test", authzSvc, sponsorSvc, stream.New())
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(actorID string, role authz.Role) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"actor_id": actorID,
		"role":     string(role),
		"active":   true,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "sponsor-api" {
		t.Fatalf("unexpected service name: %v", body["service"])
	}

	resp = api.get("/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"actor_id": "u1", "role": "superuser"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/token", map[string]any{"role": "admin"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing actor_id, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDenialsAreGeneric(t *testing.T) {
	api := newTestAPI(t)

	// No token: 401 with a body that does not leak the denial reason.
	resp := api.get("/v1/me/permissions", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "not permitted" {
		t.Fatalf("expected generic denial body, got %v", body["error"])
	}

	// Sponsor on an admin route: 403, same generic body.
	token := api.obtainToken("sponsor-1", authz.RoleSponsor)
	resp = api.post("/v1/roles/assistant/permissions", map[string]any{
		"permission": "sponsorships.manage",
	}, bearerHeader(token))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body = decode[map[string]any](t, resp)
	if body["error"] != "not permitted" {
		t.Fatalf("expected generic denial body, got %v", body["error"])
	}
}

func TestMyPermissionsReflectsRole(t *testing.T) {
	api := newTestAPI(t)

	token := api.obtainToken("sponsor-1", authz.RoleSponsor)
	resp := api.get("/v1/me/permissions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body := decode[struct {
		ActorID     string   `json:"actor_id"`
		Permissions []string `json:"permissions"`
	}](t, resp)
	if body.ActorID != "sponsor-1" {
		t.Fatalf("unexpected actor: %s", body.ActorID)
	}
	has := func(perm string) bool {
		for _, p := range body.Permissions {
			if p == perm {
				return true
			}
		}
		return false
	}
	if !has(authz.PermChildrenView) || has(authz.PermSettingsManage) {
		t.Fatalf("unexpected permission set: %v", body.Permissions)
	}
}
