// Package notify is the boundary to the notification delivery system. The
// lifecycle core requests dispatches but never blocks a transition on the
// outcome; delivery transport lives outside this repository.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radiopv/assistantpv-sub000/internal/obs"
)

// Notification types raised by the lifecycle core.
const (
	TypeSponsorshipStarted     = "sponsorship_started"
	TypeSponsorshipEnded       = "sponsorship_ended"
	TypeSponsorshipPaused      = "sponsorship_paused"
	TypeSponsorshipResumed     = "sponsorship_resumed"
	TypeSponsorshipTransferred = "sponsorship_transferred"
	TypeRequestRejected        = "request_rejected"
)

// Notification is a dispatch request addressed to one recipient.
type Notification struct {
	ID          string         `json:"id"`
	RecipientID string         `json:"recipient_id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Dispatcher hands a notification to the delivery system.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// New fills in ID and timestamp for a notification.
func New(recipientID, typ string, payload map[string]any) Notification {
	return Notification{
		ID:          uuid.NewString(),
		RecipientID: strings.TrimSpace(recipientID),
		Type:        typ,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
}

// LogDispatcher writes notifications as structured log lines. Stands in for
// the real delivery transport in development and tests.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	entry := map[string]any{
		"ts":        n.CreatedAt.Format(time.RFC3339Nano),
		"type":      "notification",
		"event":     n.Type,
		"recipient": n.RecipientID,
		"id":        n.ID,
	}
	if len(n.Payload) > 0 {
		entry["payload"] = n.Payload
	}
	obs.LogRequest(entry)
	return nil
}
