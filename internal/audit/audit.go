package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/obs"
)

// Entry is one append-only record of a lifecycle-affecting action. Entries
// are never mutated or deleted; Sequence orders entries belonging to the
// same sponsorship.
type Entry struct {
	ID            string         `json:"id"`
	SponsorshipID string         `json:"sponsorship_id"`
	Action        string         `json:"action"`
	PerformedBy   string         `json:"performed_by"`
	Details       map[string]any `json:"details,omitempty"`
	Sequence      uint64         `json:"sequence"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Store appends and reads immutable entries. Append assigns ID, Sequence
// and CreatedAt.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	BySponsorship(ctx context.Context, sponsorshipID string) ([]Entry, error)
}

var ErrInvalidEntry = errors.New("audit: invalid entry")

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder writes audit entries to the store and mirrors each one as a
// structured JSON log line. Record must not fail silently: a store error is
// returned to the caller so the triggering operation can be reported as
// failed.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Recorder{store: store, now: time.Now}, nil
}

// Record appends the entry and emits the audit log line. The returned entry
// carries the assigned ID, sequence and timestamp.
func (r *Recorder) Record(ctx context.Context, entry Entry) (Entry, error) {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return Entry{}, fmt.Errorf("%w: action is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.SponsorshipID) == "" {
		return Entry{}, fmt.Errorf("%w: sponsorship_id is required", ErrInvalidEntry)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		return Entry{}, fmt.Errorf("append audit entry: %w", err)
	}
	r.logLine(ctx, entry)
	return entry, nil
}

// Trail returns the ordered entries for one sponsorship.
func (r *Recorder) Trail(ctx context.Context, sponsorshipID string) ([]Entry, error) {
	sponsorshipID = strings.TrimSpace(sponsorshipID)
	if sponsorshipID == "" {
		return nil, fmt.Errorf("%w: sponsorship_id is required", ErrInvalidEntry)
	}
	return r.store.BySponsorship(ctx, sponsorshipID)
}

func (r *Recorder) logLine(ctx context.Context, entry Entry) {
	line := map[string]any{
		"ts":             entry.CreatedAt.Format(time.RFC3339Nano),
		"type":           "audit",
		"event":          entry.Action,
		"sponsorship_id": entry.SponsorshipID,
		"performed_by":   entry.PerformedBy,
		"sequence":       entry.Sequence,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	if actor, ok := authz.ActorFromContext(ctx); ok {
		line["actor_id"] = actor.ID
	}
	if len(entry.Details) > 0 {
		line["details"] = entry.Details
	}
	data, err := json.Marshal(line)
	if err != nil {
		obs.Warn("audit log marshal failed", map[string]any{"event": entry.Action})
		return
	}
	obs.Logger().Println(string(data))
}
