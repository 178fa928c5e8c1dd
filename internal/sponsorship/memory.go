package sponsorship

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. Used by
// tests and DSN-less deployments; the invariants it enforces under its lock
// mirror what the Postgres schema enforces with constraints.
type InMemory struct {
	mu          sync.RWMutex
	requests    map[string]*Request
	sponsors    map[string]*Sponsorship
	assignments []AssignmentRequest
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[string]*Request),
		sponsors: make(map[string]*Sponsorship),
	}
}

func (m *InMemory) CreateRequest(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *InMemory) GetRequest(ctx context.Context, id string) (Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (m *InMemory) ListRequests(ctx context.Context, status RequestStatus) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Request
	for _, req := range m.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	sortRequests(out)
	return out, nil
}

func (m *InMemory) ApproveRequest(ctx context.Context, requestID string, sp *Sponsorship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if req.Status != RequestPending {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}
	if m.activeForChildLocked(sp.ChildID) != nil {
		return ErrConflict
	}

	req.Status = RequestApproved
	req.UpdatedAt = sp.CreatedAt
	m.sponsors[sp.ID] = cloneSponsorship(sp)
	return nil
}

func (m *InMemory) RejectRequest(ctx context.Context, requestID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if req.Status != RequestPending {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}
	req.Status = RequestRejected
	req.RejectionReason = reason
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *InMemory) CreateSponsorship(ctx context.Context, sp *Sponsorship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sp.Status == StatusActive && m.activeForChildLocked(sp.ChildID) != nil {
		return ErrConflict
	}
	m.sponsors[sp.ID] = cloneSponsorship(sp)
	return nil
}

func (m *InMemory) GetSponsorship(ctx context.Context, id string) (Sponsorship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sp, ok := m.sponsors[id]
	if !ok {
		return Sponsorship{}, ErrNotFound
	}
	return *cloneSponsorship(sp), nil
}

func (m *InMemory) ActiveByChild(ctx context.Context, childID string) (Sponsorship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sp := m.activeForChildLocked(childID); sp != nil {
		return *cloneSponsorship(sp), nil
	}
	return Sponsorship{}, ErrNotFound
}

func (m *InMemory) ListBySponsor(ctx context.Context, sponsorID string) ([]Sponsorship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Sponsorship
	for _, sp := range m.sponsors {
		if sp.SponsorID == sponsorID {
			out = append(out, *cloneSponsorship(sp))
		}
	}
	sortSponsorships(out)
	return out, nil
}

func (m *InMemory) Terminate(ctx context.Context, id string, from []Status, endDate time.Time, reason, comment string) (Sponsorship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sponsors[id]
	if !ok {
		return Sponsorship{}, ErrNotFound
	}
	if !statusIn(sp.Status, from) {
		return Sponsorship{}, fmt.Errorf("%w: sponsorship is %s", ErrInvalidState, sp.Status)
	}

	end := endDate.UTC()
	sp.Status = StatusEnded
	sp.EndDate = &end
	sp.TerminationReason = reason
	sp.TerminationComment = comment
	sp.UpdatedAt = time.Now().UTC()
	return *cloneSponsorship(sp), nil
}

func (m *InMemory) SetStatus(ctx context.Context, id string, from, to Status) (Sponsorship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sponsors[id]
	if !ok {
		return Sponsorship{}, ErrNotFound
	}
	if sp.Status != from {
		return Sponsorship{}, fmt.Errorf("%w: sponsorship is %s", ErrInvalidState, sp.Status)
	}
	sp.Status = to
	sp.UpdatedAt = time.Now().UTC()
	return *cloneSponsorship(sp), nil
}

func (m *InMemory) TransferChild(ctx context.Context, childID string, replacement *Sponsorship) (Sponsorship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.activeForChildLocked(childID)
	if current == nil {
		return Sponsorship{}, ErrNotFound
	}
	if current.SponsorID == replacement.SponsorID {
		return Sponsorship{}, ErrConflict
	}

	end := replacement.StartDate.UTC()
	current.Status = StatusEnded
	current.EndDate = &end
	current.TerminationReason = ReasonTransfer
	current.UpdatedAt = end

	m.sponsors[replacement.ID] = cloneSponsorship(replacement)
	return *cloneSponsorship(current), nil
}

func (m *InMemory) CreateAssignmentRequest(ctx context.Context, req *AssignmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, *req)
	return nil
}

func (m *InMemory) ListAssignmentRequests(ctx context.Context, sponsorID string) ([]AssignmentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AssignmentRequest
	for _, req := range m.assignments {
		if req.SponsorID == sponsorID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *InMemory) activeForChildLocked(childID string) *Sponsorship {
	for _, sp := range m.sponsors {
		if sp.ChildID == childID && sp.Status == StatusActive {
			return sp
		}
	}
	return nil
}

func statusIn(status Status, allowed []Status) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}

func cloneRequest(req *Request) *Request {
	out := *req
	return &out
}

func cloneSponsorship(sp *Sponsorship) *Sponsorship {
	out := *sp
	if sp.EndDate != nil {
		end := *sp.EndDate
		out.EndDate = &end
	}
	return &out
}

func sortRequests(reqs []Request) {
	// ULIDs sort by creation time.
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
}

func sortSponsorships(sps []Sponsorship) {
	sort.Slice(sps, func(i, j int) bool { return sps[i].ID < sps[j].ID })
}
