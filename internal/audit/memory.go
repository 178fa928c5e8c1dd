package audit

import (
	"context"
	"sync"

	"github.com/radiopv/assistantpv-sub000/internal/ids"
)

// InMemory implements Store for tests and DSN-less deployments. Sequences
// are monotonic per sponsorship.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	seq     map[string]uint64
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty audit store.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string][]Entry),
		seq:     make(map[string]uint64),
	}
}

func (m *InMemory) Append(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	m.seq[entry.SponsorshipID]++
	entry.Sequence = m.seq[entry.SponsorshipID]
	m.entries[entry.SponsorshipID] = append(m.entries[entry.SponsorshipID], *entry)
	return nil
}

func (m *InMemory) BySponsorship(ctx context.Context, sponsorshipID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.entries[sponsorshipID]
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out, nil
}
