package sponsorship

import (
	"context"
	"time"
)

// Store is the persistence boundary for the lifecycle manager. Every
// transition method is a transactional check-then-write: the store validates
// the precondition and applies the mutation as one atomic unit, so a failed
// precondition leaves no partial state. The one-active-sponsorship-per-child
// invariant is ultimately the store's to enforce (the Postgres
// implementation backs it with a partial unique index).
type Store interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, status RequestStatus) ([]Request, error)

	// ApproveRequest marks the pending request approved and inserts the
	// given active sponsorship in one transaction. ErrInvalidState when the
	// request is not pending; ErrConflict when the child already has an
	// active sponsorship.
	ApproveRequest(ctx context.Context, requestID string, sp *Sponsorship) error

	// RejectRequest marks the pending request rejected. ErrInvalidState
	// when the request is not pending.
	RejectRequest(ctx context.Context, requestID, reason string) error

	// CreateSponsorship inserts a new active sponsorship. ErrConflict when
	// the child already has one.
	CreateSponsorship(ctx context.Context, sp *Sponsorship) error

	GetSponsorship(ctx context.Context, id string) (Sponsorship, error)
	ActiveByChild(ctx context.Context, childID string) (Sponsorship, error)
	ListBySponsor(ctx context.Context, sponsorID string) ([]Sponsorship, error)

	// Terminate moves the sponsorship to ended when its current status is in
	// from. Sets end date, reason and comment. ErrInvalidState otherwise.
	Terminate(ctx context.Context, id string, from []Status, endDate time.Time, reason, comment string) (Sponsorship, error)

	// SetStatus is a compare-and-set between non-terminal states (pause and
	// resume). ErrInvalidState when the current status differs from from.
	SetStatus(ctx context.Context, id string, from, to Status) (Sponsorship, error)

	// TransferChild atomically ends the child's active sponsorship with
	// reason "transfer" and inserts the replacement active row. Returns the
	// ended row. ErrNotFound when the child has no active sponsorship;
	// ErrConflict when the replacement sponsor already holds it.
	TransferChild(ctx context.Context, childID string, replacement *Sponsorship) (Sponsorship, error)

	CreateAssignmentRequest(ctx context.Context, req *AssignmentRequest) error
	ListAssignmentRequests(ctx context.Context, sponsorID string) ([]AssignmentRequest, error)
}
