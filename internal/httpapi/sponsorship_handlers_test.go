package httpapi

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
)

func TestSponsorshipRequestLifecycle(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	// Anonymous submission is open.
	resp := api.post("/v1/sponsorship-requests", map[string]any{
		"child_id":        "child-1",
		"requester_name":  "Marie Dubois",
		"requester_email": "marie@example.org",
		"terms_accepted":  true,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status: %d", resp.StatusCode)
	}
	req := decode[sponsorship.Request](t, resp)
	if req.Status != sponsorship.RequestPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}

	// Submission without accepted terms is rejected.
	resp = api.post("/v1/sponsorship-requests", map[string]any{
		"child_id":        "child-2",
		"requester_name":  "Jean",
		"requester_email": "jean@example.org",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without terms, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Listing requires elevated access.
	resp = api.get("/v1/sponsorship-requests", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/sponsorship-requests", url.Values{"status": {"pending"}}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	list := decode[struct {
		Items []sponsorship.Request `json:"items"`
	}](t, resp)
	if len(list.Items) != 1 {
		t.Fatalf("expected one pending request, got %d", len(list.Items))
	}

	// Approve creates the sponsorship.
	resp = api.post("/v1/sponsorship-requests/"+req.ID+"/approve", nil, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("approve status: %d", resp.StatusCode)
	}
	sp := decode[sponsorship.Sponsorship](t, resp)
	if sp.Status != sponsorship.StatusActive || sp.ChildID != "child-1" {
		t.Fatalf("unexpected sponsorship: %+v", sp)
	}

	// A second approval of the same request is an invalid state.
	resp = api.post("/v1/sponsorship-requests/"+req.ID+"/approve", nil, admin)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The child resource resolves the active sponsorship.
	resp = api.get("/v1/children/child-1/sponsorship", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("child lookup status: %d", resp.StatusCode)
	}
	active := decode[sponsorship.Sponsorship](t, resp)
	if active.ID != sp.ID {
		t.Fatalf("expected %s, got %s", sp.ID, active.ID)
	}

	// Audit trail records the approval.
	resp = api.get("/v1/sponsorships/"+sp.ID+"/audit", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status: %d", resp.StatusCode)
	}
	trail := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, resp)
	if len(trail.Items) != 1 || trail.Items[0]["action"] != sponsorship.ActionRequestApproved {
		t.Fatalf("unexpected trail: %+v", trail.Items)
	}
}

func TestDirectCreateConflictAndTransfer(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	resp := api.post("/v1/sponsorships", map[string]any{
		"sponsor_id": "sponsor-1",
		"child_id":   "child-1",
	}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	first := decode[sponsorship.Sponsorship](t, resp)

	// One active sponsorship per child.
	resp = api.post("/v1/sponsorships", map[string]any{
		"sponsor_id": "sponsor-2",
		"child_id":   "child-1",
	}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Transfer returns both halves.
	resp = api.post("/v1/transfers", map[string]any{
		"child_id":       "child-1",
		"new_sponsor_id": "sponsor-2",
	}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transfer status: %d", resp.StatusCode)
	}
	result := decode[sponsorship.Transfer](t, resp)
	if result.Ended.ID != first.ID || result.Ended.TerminationReason != sponsorship.ReasonTransfer {
		t.Fatalf("unexpected ended half: %+v", result.Ended)
	}
	if result.Started.SponsorID != "sponsor-2" || result.Started.Status != sponsorship.StatusActive {
		t.Fatalf("unexpected started half: %+v", result.Started)
	}

	// Transferring to the holder again conflicts.
	resp = api.post("/v1/transfers", map[string]any{
		"child_id":       "child-1",
		"new_sponsor_id": "sponsor-2",
	}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTerminatePauseResumeEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	resp := api.post("/v1/sponsorships", map[string]any{
		"sponsor_id": "sponsor-1",
		"child_id":   "child-1",
	}, admin)
	sp := decode[sponsorship.Sponsorship](t, resp)

	resp = api.post("/v1/sponsorships/"+sp.ID+"/pause", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause status: %d", resp.StatusCode)
	}
	paused := decode[sponsorship.Sponsorship](t, resp)
	if paused.Status != sponsorship.StatusPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	resp = api.post("/v1/sponsorships/"+sp.ID+"/resume", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Termination requires a reason.
	resp = api.post("/v1/sponsorships/"+sp.ID+"/terminate", map[string]any{}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/sponsorships/"+sp.ID+"/terminate", map[string]any{
		"reason":  "family_request",
		"comment": "moving abroad",
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("terminate status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/sponsorships/"+sp.ID, nil, admin)
	ended := decode[sponsorship.Sponsorship](t, resp)
	if ended.Status != sponsorship.StatusEnded || ended.EndDate == nil {
		t.Fatalf("unexpected final state: %+v", ended)
	}

	// A second termination reports the invalid state.
	resp = api.post("/v1/sponsorships/"+sp.ID+"/terminate", map[string]any{
		"reason": "other",
	}, admin)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRuntimeGrantOpensLifecycleToAssistant(t *testing.T) {
	api := newTestAPI(t)
	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))

	// Assistants cannot manage the lifecycle out of the box.
	assistantToken := api.obtainToken("assistant-1", authz.RoleAssistant)
	resp := api.post("/v1/sponsorships", map[string]any{
		"sponsor_id": "sponsor-1",
		"child_id":   "child-9",
	}, bearerHeader(assistantToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Admin grants the role the manage permission at runtime.
	resp = api.post("/v1/roles/assistant/permissions", map[string]any{
		"permission": authz.PermSponsorshipsManage,
	}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("grant status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/sponsorships", map[string]any{
		"sponsor_id": "sponsor-1",
		"child_id":   "child-9",
	}, bearerHeader(assistantToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAssignmentRequestEndpoint(t *testing.T) {
	api := newTestAPI(t)
	sponsor := bearerHeader(api.obtainToken("sponsor-1", authz.RoleSponsor))

	resp := api.post("/v1/assignment-requests", map[string]any{
		"child_id": "child-3",
		"kind":     "add",
		"notes":    "met during a visit",
	}, sponsor)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status: %d", resp.StatusCode)
	}
	req := decode[sponsorship.AssignmentRequest](t, resp)
	if req.SponsorID != "sponsor-1" || req.Kind != "add" {
		t.Fatalf("unexpected request: %+v", req)
	}

	admin := bearerHeader(api.obtainToken("admin-1", authz.RoleAdmin))
	resp = api.get("/v1/sponsors/sponsor-1/assignment-requests", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	list := decode[struct {
		Items []sponsorship.AssignmentRequest `json:"items"`
	}](t, resp)
	if len(list.Items) != 1 || list.Items[0].ID != req.ID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
}
