package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
)

// Route requirements. Lifecycle mutations stay with elevated staff; reads
// go to anyone holding the view permission.
var (
	reqLifecycleManage = authz.Requirement{Elevated: true, Permission: authz.PermSponsorshipsManage}
	reqLifecycleView   = authz.Requirement{Permission: authz.PermSponsorshipsView}
	reqSponsorOnly     = authz.Requirement{Roles: []authz.Role{authz.RoleAdmin, authz.RoleSponsor}}
)

type submitRequestBody struct {
	ChildID        string `json:"child_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	LongTerm       bool   `json:"long_term"`
	TermsAccepted  bool   `json:"terms_accepted"`
}

type rejectRequestBody struct {
	Reason string `json:"reason"`
}

type createSponsorshipBody struct {
	SponsorID string `json:"sponsor_id"`
	ChildID   string `json:"child_id"`
	Anonymous bool   `json:"anonymous"`
}

type terminateBody struct {
	EndDate string `json:"end_date"`
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

type transferBody struct {
	ChildID      string `json:"child_id"`
	NewSponsorID string `json:"new_sponsor_id"`
}

type assignmentRequestBody struct {
	ChildID string `json:"child_id"`
	Kind    string `json:"kind"`
	Notes   string `json:"notes"`
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitRequest(w, r)
	case http.MethodGet:
		a.listRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sponsorship-requests/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch parts[1] {
	case "approve":
		a.approveRequest(w, r, parts[0])
	case "reject":
		a.rejectRequest(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// submitRequest is the public entry point for would-be sponsors.
func (a *API) submitRequest(w http.ResponseWriter, r *http.Request) {
	if !a.ensureAccess(w, r, authz.Requirement{Public: true}) {
		return
	}
	var body submitRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := sponsorship.Request{
		ChildID:        body.ChildID,
		RequesterName:  body.RequesterName,
		RequesterEmail: body.RequesterEmail,
		LongTerm:       body.LongTerm,
		TermsAccepted:  body.TermsAccepted,
	}
	if actor, ok := authz.ActorFromContext(r.Context()); ok {
		req.RequesterID = actor.ID
	}

	created, err := a.sponsor.SubmitRequest(r.Context(), req)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sponsorship-requests/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	status := sponsorship.RequestStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	items, err := a.sponsor.ListRequests(r.Context(), status)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) approveRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	sp, err := a.sponsor.ApproveRequest(r.Context(), requestID, actor.ID)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sponsorships/"+sp.ID)
	writeJSON(w, http.StatusCreated, sp)
}

func (a *API) rejectRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	var body rejectRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := a.sponsor.RejectRequest(r.Context(), requestID, actor.ID, body.Reason); err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "rejected"})
}

func (a *API) handleSponsorshipsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	var body createSponsorshipBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	sp, err := a.sponsor.CreateDirect(r.Context(), body.SponsorID, body.ChildID, actor.ID, body.Anonymous)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sponsorships/"+sp.ID)
	writeJSON(w, http.StatusCreated, sp)
}

func (a *API) handleSponsorshipResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sponsorships/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getSponsorship(w, r, id)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch parts[1] {
	case "audit":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.auditTrail(w, r, id)
	case "terminate":
		a.terminate(w, r, id)
	case "pause":
		a.toggle(w, r, id, a.sponsor.Pause)
	case "resume":
		a.toggle(w, r, id, a.sponsor.Resume)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getSponsorship(w http.ResponseWriter, r *http.Request, id string) {
	if !a.ensureAccess(w, r, reqLifecycleView) {
		return
	}
	sp, err := a.sponsor.Get(r.Context(), id)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (a *API) auditTrail(w http.ResponseWriter, r *http.Request, id string) {
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	items, err := a.sponsor.AuditTrail(r.Context(), id)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) terminate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	var body terminateBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var endDate time.Time
	if strings.TrimSpace(body.EndDate) != "" {
		t, err := time.Parse(time.RFC3339, body.EndDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "end_date must be RFC 3339")
			return
		}
		endDate = t
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := a.sponsor.Terminate(r.Context(), id, actor.ID, endDate, body.Reason, body.Comment); err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended"})
}

func (a *API) toggle(w http.ResponseWriter, r *http.Request, id string, fn func(ctx context.Context, id, actorID string) error) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := fn(r.Context(), id, actor.ID); err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	sp, err := a.sponsor.Get(r.Context(), id)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (a *API) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleManage) {
		return
	}
	var body transferBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	result, err := a.sponsor.Transfer(r.Context(), body.ChildID, body.NewSponsorID, actor.ID)
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleChildResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/children/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "sponsorship" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleView) {
		return
	}
	sp, err := a.sponsor.ActiveByChild(r.Context(), parts[0])
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (a *API) handleSponsorResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sponsors/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureAccess(w, r, reqLifecycleView) {
		return
	}

	switch parts[1] {
	case "sponsorships":
		items, err := a.sponsor.ListBySponsor(r.Context(), parts[0])
		if err != nil {
			handleSponsorshipError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case "assignment-requests":
		items, err := a.sponsor.ListAssignmentRequests(r.Context(), parts[0])
		if err != nil {
			handleSponsorshipError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAssignmentRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureAccess(w, r, reqSponsorOnly) {
		return
	}
	var body assignmentRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	req, err := a.sponsor.SubmitAssignmentRequest(r.Context(), sponsorship.AssignmentRequest{
		SponsorID: actor.ID,
		ChildID:   body.ChildID,
		Kind:      body.Kind,
		Notes:     body.Notes,
	})
	if err != nil {
		handleSponsorshipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}
