package sponsorship

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/audit"
	"github.com/radiopv/assistantpv-sub000/internal/ids"
	"github.com/radiopv/assistantpv-sub000/internal/notify"
	"github.com/radiopv/assistantpv-sub000/internal/obs"
	"github.com/radiopv/assistantpv-sub000/internal/stream"
)

const dispatchTimeout = 5 * time.Second

// Service owns every sponsorship transition. All callers go through the
// same precondition checks here; the store guarantees atomicity of each
// mutation, the audit recorder is written before any notification goes out,
// and notifications never block a transition's success.
type Service struct {
	store    Store
	audit    *audit.Recorder
	notifier notify.Dispatcher
	events   *stream.Stream
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithNotifier sets the notification dispatcher.
func WithNotifier(d notify.Dispatcher) Option {
	return func(s *Service) {
		if d != nil {
			s.notifier = d
		}
	}
}

// WithStream publishes lifecycle events to the given stream.
func WithStream(st *stream.Stream) Option {
	return func(s *Service) { s.events = st }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle manager.
func NewService(store Store, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("sponsorship store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	s := &Service{
		store:    store,
		audit:    recorder,
		notifier: notify.LogDispatcher{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitRequest files a new pending sponsorship request. Open to anonymous
// requesters; terms must be accepted.
func (s *Service) SubmitRequest(ctx context.Context, req Request) (Request, error) {
	req.ChildID = strings.TrimSpace(req.ChildID)
	req.RequesterName = strings.TrimSpace(req.RequesterName)
	req.RequesterEmail = strings.TrimSpace(strings.ToLower(req.RequesterEmail))
	if req.ChildID == "" {
		return Request{}, fmt.Errorf("%w: child_id is required", ErrInvalidInput)
	}
	if req.RequesterName == "" {
		return Request{}, fmt.Errorf("%w: requester name is required", ErrInvalidInput)
	}
	if req.RequesterEmail == "" || !strings.Contains(req.RequesterEmail, "@") {
		return Request{}, fmt.Errorf("%w: valid requester email is required", ErrInvalidInput)
	}
	if !req.TermsAccepted {
		return Request{}, fmt.Errorf("%w: terms must be accepted", ErrInvalidInput)
	}

	req.ID = ids.New()
	req.Status = RequestPending
	now := s.now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if err := s.store.CreateRequest(ctx, &req); err != nil {
		s.observe(ActionRequestSubmitted, err)
		return Request{}, err
	}

	// No sponsorship row exists yet; the entry hangs off the request
	// identifier, like rejections do.
	if err := s.record(ctx, audit.Entry{
		SponsorshipID: req.ID,
		Action:        ActionRequestSubmitted,
		PerformedBy:   requesterOrRequestID(req),
		Details: map[string]any{
			"child_id":     req.ChildID,
			"is_long_term": req.LongTerm,
		},
	}); err != nil {
		return Request{}, err
	}
	s.observe(ActionRequestSubmitted, nil)
	return req, nil
}

// ApproveRequest turns a pending request into an active sponsorship. The
// request flip and the sponsorship insert are one atomic store operation;
// ErrConflict surfaces when the child is already actively sponsored.
func (s *Service) ApproveRequest(ctx context.Context, requestID, adminID string) (Sponsorship, error) {
	requestID = strings.TrimSpace(requestID)
	adminID = strings.TrimSpace(adminID)
	if requestID == "" || adminID == "" {
		return Sponsorship{}, fmt.Errorf("%w: request_id and admin_id are required", ErrInvalidInput)
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return Sponsorship{}, err
	}
	// Early exit; the store re-checks inside the transaction.
	if req.Status != RequestPending {
		return Sponsorship{}, fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}

	now := s.now().UTC()
	sp := Sponsorship{
		ID:        ids.New(),
		SponsorID: requesterOrRequestID(req),
		ChildID:   req.ChildID,
		Status:    StatusActive,
		StartDate: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.ApproveRequest(ctx, requestID, &sp); err != nil {
		s.observe(ActionRequestApproved, err)
		return Sponsorship{}, err
	}

	if err := s.record(ctx, audit.Entry{
		SponsorshipID: sp.ID,
		Action:        ActionRequestApproved,
		PerformedBy:   adminID,
		Details: map[string]any{
			"request_id": requestID,
			"child_id":   sp.ChildID,
			"sponsor_id": sp.SponsorID,
			"status":     string(sp.Status),
		},
	}); err != nil {
		return Sponsorship{}, err
	}
	s.observe(ActionRequestApproved, nil)

	s.dispatch(notify.New(sp.SponsorID, notify.TypeSponsorshipStarted, map[string]any{
		"sponsorship_id": sp.ID,
		"child_id":       sp.ChildID,
	}))
	s.publish(sp, ActionRequestApproved)
	return sp, nil
}

// RejectRequest marks a pending request rejected. Terminal; no sponsorship
// is created.
func (s *Service) RejectRequest(ctx context.Context, requestID, adminID, reason string) error {
	requestID = strings.TrimSpace(requestID)
	adminID = strings.TrimSpace(adminID)
	if requestID == "" || adminID == "" {
		return fmt.Errorf("%w: request_id and admin_id are required", ErrInvalidInput)
	}
	if err := s.store.RejectRequest(ctx, requestID, strings.TrimSpace(reason)); err != nil {
		s.observe(ActionRequestRejected, err)
		return err
	}
	// Rejected requests have no sponsorship row; the audit entry hangs off
	// the request identifier instead.
	if err := s.record(ctx, audit.Entry{
		SponsorshipID: requestID,
		Action:        ActionRequestRejected,
		PerformedBy:   adminID,
		Details:       map[string]any{"request_id": requestID, "reason": reason},
	}); err != nil {
		return err
	}
	s.observe(ActionRequestRejected, nil)

	if req, err := s.store.GetRequest(ctx, requestID); err == nil && req.RequesterID != "" {
		s.dispatch(notify.New(req.RequesterID, notify.TypeRequestRejected, map[string]any{
			"request_id": requestID,
		}))
	}
	return nil
}

// CreateDirect opens an active sponsorship without a request. Admin path.
func (s *Service) CreateDirect(ctx context.Context, sponsorID, childID, adminID string, anonymous bool) (Sponsorship, error) {
	sponsorID = strings.TrimSpace(sponsorID)
	childID = strings.TrimSpace(childID)
	adminID = strings.TrimSpace(adminID)
	if sponsorID == "" || childID == "" || adminID == "" {
		return Sponsorship{}, fmt.Errorf("%w: sponsor_id, child_id and admin_id are required", ErrInvalidInput)
	}

	now := s.now().UTC()
	sp := Sponsorship{
		ID:        ids.New(),
		SponsorID: sponsorID,
		ChildID:   childID,
		Status:    StatusActive,
		StartDate: now,
		Anonymous: anonymous,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSponsorship(ctx, &sp); err != nil {
		s.observe(ActionCreated, err)
		return Sponsorship{}, err
	}

	if err := s.record(ctx, audit.Entry{
		SponsorshipID: sp.ID,
		Action:        ActionCreated,
		PerformedBy:   adminID,
		Details: map[string]any{
			"child_id":   childID,
			"sponsor_id": sponsorID,
			"anonymous":  anonymous,
		},
	}); err != nil {
		return Sponsorship{}, err
	}
	s.observe(ActionCreated, nil)

	s.dispatch(notify.New(sponsorID, notify.TypeSponsorshipStarted, map[string]any{
		"sponsorship_id": sp.ID,
		"child_id":       childID,
	}))
	s.publish(sp, ActionCreated)
	return sp, nil
}

// Terminate ends an active or paused sponsorship. A reason is mandatory;
// the audit entry is written before the notification is requested.
func (s *Service) Terminate(ctx context.Context, id, adminID string, endDate time.Time, reason, comment string) error {
	id = strings.TrimSpace(id)
	adminID = strings.TrimSpace(adminID)
	reason = strings.TrimSpace(reason)
	if id == "" || adminID == "" {
		return fmt.Errorf("%w: sponsorship_id and admin_id are required", ErrInvalidInput)
	}
	if reason == "" {
		return fmt.Errorf("%w: termination reason is required", ErrInvalidInput)
	}
	if endDate.IsZero() {
		endDate = s.now().UTC()
	}

	before, err := s.store.GetSponsorship(ctx, id)
	if err != nil {
		return err
	}
	if endDate.Before(before.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	ended, err := s.store.Terminate(ctx, id, []Status{StatusActive, StatusPaused}, endDate, reason, comment)
	if err != nil {
		s.observe(ActionTerminated, err)
		return err
	}

	if err := s.record(ctx, audit.Entry{
		SponsorshipID: ended.ID,
		Action:        ActionTerminated,
		PerformedBy:   adminID,
		Details: map[string]any{
			"from":     string(before.Status),
			"to":       string(StatusEnded),
			"end_date": endDate.Format(time.RFC3339),
			"reason":   reason,
			"comment":  comment,
		},
	}); err != nil {
		return err
	}
	s.observe(ActionTerminated, nil)

	s.dispatch(notify.New(ended.SponsorID, notify.TypeSponsorshipEnded, map[string]any{
		"sponsorship_id": ended.ID,
		"child_id":       ended.ChildID,
		"reason":         reason,
	}))
	s.publish(ended, ActionTerminated)
	return nil
}

// Transfer moves a child from their current sponsor to a new one as one
// atomic action: the old sponsorship ends with reason "transfer" and the
// replacement starts immediately. The two audit entries share a transfer id
// so readers can reconstruct the move.
func (s *Service) Transfer(ctx context.Context, childID, newSponsorID, adminID string) (Transfer, error) {
	childID = strings.TrimSpace(childID)
	newSponsorID = strings.TrimSpace(newSponsorID)
	adminID = strings.TrimSpace(adminID)
	if childID == "" || newSponsorID == "" || adminID == "" {
		return Transfer{}, fmt.Errorf("%w: child_id, new_sponsor_id and admin_id are required", ErrInvalidInput)
	}

	// Early exit when the child is already with the target sponsor; the
	// store re-checks inside the transaction.
	if current, err := s.store.ActiveByChild(ctx, childID); err == nil && current.SponsorID == newSponsorID {
		return Transfer{}, fmt.Errorf("%w: child already sponsored by %s", ErrConflict, newSponsorID)
	}

	now := s.now().UTC()
	replacement := Sponsorship{
		ID:        ids.New(),
		SponsorID: newSponsorID,
		ChildID:   childID,
		Status:    StatusActive,
		StartDate: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ended, err := s.store.TransferChild(ctx, childID, &replacement)
	if err != nil {
		s.observe(ActionTransferred, err)
		return Transfer{}, err
	}

	transferID := ids.New()
	if err := s.record(ctx, audit.Entry{
		SponsorshipID: ended.ID,
		Action:        ActionTransferred,
		PerformedBy:   adminID,
		Details: map[string]any{
			"transfer_id":     transferID,
			"child_id":        childID,
			"from_sponsor_id": ended.SponsorID,
			"to_sponsor_id":   newSponsorID,
			"role":            "ended",
			"linked_id":       replacement.ID,
		},
	}); err != nil {
		return Transfer{}, err
	}
	if err := s.record(ctx, audit.Entry{
		SponsorshipID: replacement.ID,
		Action:        ActionTransferred,
		PerformedBy:   adminID,
		Details: map[string]any{
			"transfer_id":     transferID,
			"child_id":        childID,
			"from_sponsor_id": ended.SponsorID,
			"to_sponsor_id":   newSponsorID,
			"role":            "started",
			"linked_id":       ended.ID,
		},
	}); err != nil {
		return Transfer{}, err
	}
	s.observe(ActionTransferred, nil)

	s.dispatch(notify.New(ended.SponsorID, notify.TypeSponsorshipTransferred, map[string]any{
		"child_id": childID, "role": "previous",
	}))
	s.dispatch(notify.New(newSponsorID, notify.TypeSponsorshipTransferred, map[string]any{
		"child_id": childID, "role": "new", "sponsorship_id": replacement.ID,
	}))
	s.publish(replacement, ActionTransferred)
	return Transfer{Ended: ended, Started: replacement}, nil
}

// Pause suspends an active sponsorship. Date fields do not change.
func (s *Service) Pause(ctx context.Context, id, actorID string) error {
	return s.toggle(ctx, id, actorID, StatusActive, StatusPaused, ActionPaused, notify.TypeSponsorshipPaused)
}

// Resume reactivates a paused sponsorship.
func (s *Service) Resume(ctx context.Context, id, actorID string) error {
	return s.toggle(ctx, id, actorID, StatusPaused, StatusActive, ActionResumed, notify.TypeSponsorshipResumed)
}

func (s *Service) toggle(ctx context.Context, id, actorID string, from, to Status, action, notifyType string) error {
	id = strings.TrimSpace(id)
	actorID = strings.TrimSpace(actorID)
	if id == "" || actorID == "" {
		return fmt.Errorf("%w: sponsorship_id and actor_id are required", ErrInvalidInput)
	}
	sp, err := s.store.SetStatus(ctx, id, from, to)
	if err != nil {
		s.observe(action, err)
		return err
	}
	if err := s.record(ctx, audit.Entry{
		SponsorshipID: sp.ID,
		Action:        action,
		PerformedBy:   actorID,
		Details:       map[string]any{"from": string(from), "to": string(to)},
	}); err != nil {
		return err
	}
	s.observe(action, nil)
	s.dispatch(notify.New(sp.SponsorID, notifyType, map[string]any{
		"sponsorship_id": sp.ID,
		"child_id":       sp.ChildID,
	}))
	s.publish(sp, action)
	return nil
}

// SubmitAssignmentRequest files a sponsor's informal add/remove request.
func (s *Service) SubmitAssignmentRequest(ctx context.Context, req AssignmentRequest) (AssignmentRequest, error) {
	req.SponsorID = strings.TrimSpace(req.SponsorID)
	req.ChildID = strings.TrimSpace(req.ChildID)
	req.Kind = strings.TrimSpace(strings.ToLower(req.Kind))
	if req.SponsorID == "" {
		return AssignmentRequest{}, fmt.Errorf("%w: sponsor_id is required", ErrInvalidInput)
	}
	if req.Kind != "add" && req.Kind != "remove" {
		return AssignmentRequest{}, fmt.Errorf("%w: kind must be add or remove", ErrInvalidInput)
	}
	req.ID = ids.New()
	req.CreatedAt = s.now().UTC()
	if err := s.store.CreateAssignmentRequest(ctx, &req); err != nil {
		return AssignmentRequest{}, err
	}
	return req, nil
}

// Get returns one sponsorship.
func (s *Service) Get(ctx context.Context, id string) (Sponsorship, error) {
	return s.store.GetSponsorship(ctx, strings.TrimSpace(id))
}

// ActiveByChild returns the child's current active sponsorship.
func (s *Service) ActiveByChild(ctx context.Context, childID string) (Sponsorship, error) {
	return s.store.ActiveByChild(ctx, strings.TrimSpace(childID))
}

// ListBySponsor returns all sponsorships held by one sponsor.
func (s *Service) ListBySponsor(ctx context.Context, sponsorID string) ([]Sponsorship, error) {
	return s.store.ListBySponsor(ctx, strings.TrimSpace(sponsorID))
}

// ListRequests returns requests filtered by status ("" for all).
func (s *Service) ListRequests(ctx context.Context, status RequestStatus) ([]Request, error) {
	return s.store.ListRequests(ctx, status)
}

// ListAssignmentRequests returns a sponsor's assignment requests.
func (s *Service) ListAssignmentRequests(ctx context.Context, sponsorID string) ([]AssignmentRequest, error) {
	return s.store.ListAssignmentRequests(ctx, strings.TrimSpace(sponsorID))
}

// AuditTrail returns the ordered audit entries for one sponsorship.
func (s *Service) AuditTrail(ctx context.Context, sponsorshipID string) ([]audit.Entry, error) {
	return s.audit.Trail(ctx, sponsorshipID)
}

// record writes the audit entry paired with a committed mutation. A failure
// here fails the operation for the caller; the status change itself is not
// rolled back, so the divergence is flagged for reconciliation.
func (s *Service) record(ctx context.Context, entry audit.Entry) error {
	if _, err := s.audit.Record(ctx, entry); err != nil {
		obs.Warn("audit record diverged from committed mutation, reconciliation required", map[string]any{
			"sponsorship_id": entry.SponsorshipID,
			"action":         entry.Action,
			"error":          err.Error(),
		})
		return err
	}
	return nil
}

// dispatch requests a notification without blocking the transition.
func (s *Service) dispatch(n notify.Notification) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.notifier.Dispatch(ctx, n); err != nil {
			obs.Warn("notification dispatch failed", map[string]any{
				"type":      n.Type,
				"recipient": n.RecipientID,
				"error":     err.Error(),
			})
		}
	}()
}

func (s *Service) publish(sp Sponsorship, action string) {
	if s.events == nil {
		return
	}
	s.events.Publish(stream.Event{
		SponsorshipID: sp.ID,
		ChildID:       sp.ChildID,
		SponsorID:     sp.SponsorID,
		Action:        action,
	})
}

func (s *Service) observe(action string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidState):
		outcome = "invalid_state"
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	obs.ObserveTransition(action, outcome)
}

// requesterOrRequestID picks the sponsor identity for a materialized
// sponsorship: the authenticated requester when known, otherwise the
// request id acts as the provisional sponsor reference until an account is
// linked.
func requesterOrRequestID(req Request) string {
	if req.RequesterID != "" {
		return req.RequesterID
	}
	return req.ID
}
