package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/audit"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
)

// Client drives the sponsorship lifecycle of a running instance over its
// HTTP API. Used by operational tooling; errors map back to the same
// sentinels the in-process service returns.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenRequest struct {
	ActorID string          `json:"actor_id"`
	Role    string          `json:"role"`
	Active  bool            `json:"active"`
	TTL     string          `json:"ttl,omitempty"`
	Extra   map[string]bool `json:"overrides,omitempty"`
}

// Authenticate mints a token for the given actor and stores it on the
// client. Only available when the server exposes the token endpoint.
func (c *Client) Authenticate(ctx context.Context, actorID, role string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/token", tokenRequest{
		ActorID: actorID,
		Role:    role,
		Active:  true,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

type submitRequestBody struct {
	ChildID        string `json:"child_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	LongTerm       bool   `json:"long_term"`
	TermsAccepted  bool   `json:"terms_accepted"`
}

// SubmitRequest files a pending sponsorship request.
func (c *Client) SubmitRequest(ctx context.Context, req sponsorship.Request) (sponsorship.Request, error) {
	var out sponsorship.Request
	err := c.do(ctx, http.MethodPost, "/v1/sponsorship-requests", submitRequestBody{
		ChildID:        req.ChildID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		LongTerm:       req.LongTerm,
		TermsAccepted:  req.TermsAccepted,
	}, &out)
	return out, err
}

// ApproveRequest approves a pending request and returns the new sponsorship.
func (c *Client) ApproveRequest(ctx context.Context, requestID string) (sponsorship.Sponsorship, error) {
	var out sponsorship.Sponsorship
	err := c.do(ctx, http.MethodPost, "/v1/sponsorship-requests/"+url.PathEscape(requestID)+"/approve", nil, &out)
	return out, err
}

// RejectRequest rejects a pending request.
func (c *Client) RejectRequest(ctx context.Context, requestID, reason string) error {
	return c.do(ctx, http.MethodPost, "/v1/sponsorship-requests/"+url.PathEscape(requestID)+"/reject",
		map[string]string{"reason": reason}, nil)
}

// Get fetches one sponsorship.
func (c *Client) Get(ctx context.Context, id string) (sponsorship.Sponsorship, error) {
	var out sponsorship.Sponsorship
	err := c.do(ctx, http.MethodGet, "/v1/sponsorships/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ActiveByChild fetches the child's current active sponsorship.
func (c *Client) ActiveByChild(ctx context.Context, childID string) (sponsorship.Sponsorship, error) {
	var out sponsorship.Sponsorship
	err := c.do(ctx, http.MethodGet, "/v1/children/"+url.PathEscape(childID)+"/sponsorship", nil, &out)
	return out, err
}

type terminateBody struct {
	EndDate string `json:"end_date,omitempty"`
	Reason  string `json:"reason"`
	Comment string `json:"comment,omitempty"`
}

// Terminate ends a sponsorship with the given reason.
func (c *Client) Terminate(ctx context.Context, id string, endDate time.Time, reason, comment string) error {
	body := terminateBody{Reason: reason, Comment: comment}
	if !endDate.IsZero() {
		body.EndDate = endDate.UTC().Format(time.RFC3339)
	}
	return c.do(ctx, http.MethodPost, "/v1/sponsorships/"+url.PathEscape(id)+"/terminate", body, nil)
}

// Transfer moves the child to a new sponsor, returning both halves of the
// move.
func (c *Client) Transfer(ctx context.Context, childID, newSponsorID string) (sponsorship.Transfer, error) {
	var out sponsorship.Transfer
	err := c.do(ctx, http.MethodPost, "/v1/transfers", map[string]string{
		"child_id":       childID,
		"new_sponsor_id": newSponsorID,
	}, &out)
	return out, err
}

// Pause suspends an active sponsorship.
func (c *Client) Pause(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/sponsorships/"+url.PathEscape(id)+"/pause", nil, nil)
}

// Resume reactivates a paused sponsorship.
func (c *Client) Resume(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/sponsorships/"+url.PathEscape(id)+"/resume", nil, nil)
}

// AuditTrail fetches the ordered audit entries for a sponsorship.
func (c *Client) AuditTrail(ctx context.Context, id string) ([]audit.Entry, error) {
	var out struct {
		Items []audit.Entry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/sponsorships/"+url.PathEscape(id)+"/audit", nil, &out)
	return out.Items, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError folds an error response back into the service sentinels so
// callers can errors.Is against them the same way in-process callers do.
func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	_ = json.Unmarshal(data, &payload)
	msg := payload.Error
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", sponsorship.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", sponsorship.ErrConflict, msg)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", sponsorship.ErrInvalidState, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", sponsorship.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("http %d: %s", resp.StatusCode, msg)
	}
}
