package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
)

func TestStatusErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		code int
		body string
		want error
	}{
		{name: "not found", code: http.StatusNotFound, body: `{"error":"no active sponsorship"}`, want: sponsorship.ErrNotFound},
		{name: "conflict", code: http.StatusConflict, body: `{"error":"child already sponsored"}`, want: sponsorship.ErrConflict},
		{name: "invalid state", code: http.StatusUnprocessableEntity, body: `{"error":"sponsorship is ended"}`, want: sponsorship.ErrInvalidState},
		{name: "bad request", code: http.StatusBadRequest, body: `{"error":"reason is required"}`, want: sponsorship.ErrInvalidInput},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, err := New(srv.URL)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.Get(context.Background(), "sp-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"sp-1","status":"active"}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithToken("tok-123"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sp, err := client.Get(context.Background(), "sp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if sp.ID != "sp-1" || sp.Status != sponsorship.StatusActive {
		t.Fatalf("unexpected sponsorship: %+v", sp)
	}
}

func TestNewRejectsEmptyBase(t *testing.T) {
	t.Parallel()
	if _, err := New("   "); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
