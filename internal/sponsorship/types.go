package sponsorship

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a sponsorship.
//
//	(none) --approve--> active --pause--> paused --resume--> active
//	active|paused --terminate--> ended
//	active --transfer--> ended (old) + active (new, same child)
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// RequestStatus is the state of a pre-sponsorship application.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ReasonTransfer marks terminations caused by a transfer so readers can
// reconstruct the move as one action rather than an unrelated end+start.
const ReasonTransfer = "transfer"

// Audit actions written by the lifecycle manager.
const (
	ActionRequestSubmitted = "request.submitted"
	ActionRequestApproved  = "request.approved"
	ActionRequestRejected  = "request.rejected"
	ActionCreated          = "sponsorship.created"
	ActionTerminated       = "sponsorship.terminated"
	ActionPaused           = "sponsorship.paused"
	ActionResumed          = "sponsorship.resumed"
	ActionTransferred      = "sponsorship.transferred"
)

// Sponsorship binds one sponsor to one child. Rows are never deleted;
// termination is a status change so the audit trail stays resolvable.
// EndDate is set if and only if Status is ended.
type Sponsorship struct {
	ID                 string     `json:"id"`
	SponsorID          string     `json:"sponsor_id"`
	ChildID            string     `json:"child_id"`
	Status             Status     `json:"status"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	TerminationReason  string     `json:"termination_reason,omitempty"`
	TerminationComment string     `json:"termination_comment,omitempty"`
	Anonymous          bool       `json:"is_anonymous"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Request is a pre-sponsorship application. Approved requests spawn an
// active sponsorship; rejection is terminal.
type Request struct {
	ID              string        `json:"id"`
	ChildID         string        `json:"child_id"`
	RequesterID     string        `json:"requester_id,omitempty"`
	RequesterName   string        `json:"requester_name"`
	RequesterEmail  string        `json:"requester_email"`
	Status          RequestStatus `json:"status"`
	LongTerm        bool          `json:"is_long_term"`
	TermsAccepted   bool          `json:"terms_accepted"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// AssignmentRequest is a sponsor's informal request to add or remove a
// child from their own portfolio. It carries free-text notes and no status
// workflow; see DESIGN.md for the open question around formalizing it.
type AssignmentRequest struct {
	ID        string    `json:"id"`
	SponsorID string    `json:"sponsor_id"`
	ChildID   string    `json:"child_id,omitempty"`
	Kind      string    `json:"kind"` // "add" or "remove"
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("sponsorship: not found")
	ErrInvalidState = errors.New("sponsorship: invalid state for transition")
	ErrConflict     = errors.New("sponsorship: child already actively sponsored")
	ErrInvalidInput = errors.New("sponsorship: invalid input")
)

// Transfer pairs the two halves of a child transfer so callers and audit
// readers see them as one logical action.
type Transfer struct {
	Ended   Sponsorship `json:"ended"`
	Started Sponsorship `json:"started"`
}
