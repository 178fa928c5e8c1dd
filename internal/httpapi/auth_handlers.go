package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
)

type tokenRequest struct {
	ActorID   string          `json:"actor_id"`
	Role      string          `json:"role"`
	Active    bool            `json:"active"`
	Overrides map[string]bool `json:"overrides"`
	TTL       string          `json:"ttl"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const defaultTokenTTL = 15 * time.Minute

// handleAuthToken mints a bearer token carrying an externally resolved
// identity. Credential verification happens upstream; this endpoint exists
// for operational tooling and refuses to run without the signing secret.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		writeError(w, r, http.StatusBadRequest, "actor_id is required")
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ttl := defaultTokenTTL
	if strings.TrimSpace(req.TTL) != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 || d > 24*time.Hour {
			writeError(w, r, http.StatusBadRequest, "ttl must be a duration up to 24h")
			return
		}
		ttl = d
	}

	token, err := authz.GenerateToken(authz.Actor{
		ID:        actorID,
		Role:      role,
		Active:    req.Active,
		Overrides: req.Overrides,
	}, ttl)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
}
