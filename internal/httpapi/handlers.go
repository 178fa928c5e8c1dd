package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/obs"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
	"github.com/radiopv/assistantpv-sub000/internal/stream"
)

// ReadyProbe checks readiness (database ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Every protected route declares a Requirement that
// the access guard evaluates against the request actor before the handler
// body runs.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	authz   *authz.Service
	sponsor *sponsorship.Service
	events  *stream.Stream

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, authzSvc *authz.Service, sponsorSvc *sponsorship.Service, events *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		authz:      authzSvc,
		sponsor:    sponsorSvc,
		events:     events,
		rateBurst:  40,
		ratePerSec: 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/sponsorship-requests", a.handleRequestsCollection)
	a.mux.HandleFunc("/v1/sponsorship-requests/", a.handleRequestResource)
	a.mux.HandleFunc("/v1/sponsorships", a.handleSponsorshipsCollection)
	a.mux.HandleFunc("/v1/sponsorships/", a.handleSponsorshipResource)
	a.mux.HandleFunc("/v1/transfers", a.handleTransfers)
	a.mux.HandleFunc("/v1/children/", a.handleChildResource)
	a.mux.HandleFunc("/v1/sponsors/", a.handleSponsorResource)
	a.mux.HandleFunc("/v1/assignment-requests", a.handleAssignmentRequests)

	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)
	a.mux.HandleFunc("/v1/me/permissions", a.handleMyPermissions)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/actors/", a.handleActorResource)
	a.mux.HandleFunc("/v1/pages", a.handlePagesCollection)
	a.mux.HandleFunc("/v1/pages/", a.handlePageResource)

	a.mux.HandleFunc("/v1/stream/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sponsor-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sponsor-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// ensureAccess runs the guard for the route's requirement. Denials answer
// with a uniform "not permitted" body; the internal reason only reaches the
// metrics and the log.
func (a *API) ensureAccess(w http.ResponseWriter, r *http.Request, req authz.Requirement) bool {
	actor, _ := authz.ActorFromContext(r.Context())
	decision, err := a.authz.CheckAccess(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return false
	}
	if decision.Allowed {
		return true
	}
	obs.ObserveDenial(string(decision.Reason))
	if decision.Reason == authz.DenyUnauthenticated {
		writeError(w, r, http.StatusUnauthorized, "not permitted")
	} else {
		writeError(w, r, http.StatusForbidden, "not permitted")
	}
	return false
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleSponsorshipError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sponsorship.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, sponsorship.ErrInvalidState):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, sponsorship.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, sponsorship.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrInvalidInput), errors.Is(err, authz.ErrUnknownPage):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, authz.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "not permitted")
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "not permitted")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
