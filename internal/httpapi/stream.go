package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
)

// Stream serves lifecycle events over Server-Sent Events for live admin
// dashboards.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if !a.ensureAccess(w, r, authz.Requirement{Elevated: true}) {
		return
	}
	if a.events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.events.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
