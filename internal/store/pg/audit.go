package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/radiopv/assistantpv-sub000/internal/audit"
	"github.com/radiopv/assistantpv-sub000/internal/ids"
)

var _ audit.Store = (*Store)(nil)

// Append inserts one immutable audit row. The sequence comes from a global
// bigserial, which keeps entries of the same sponsorship strictly ordered.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	detailsJSON := []byte("{}")
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsJSON = data
	}
	err := s.db.QueryRowContext(ctx, `
		insert into audit_log (id, sponsorship_id, action, performed_by, details, created_at)
		values ($1, $2, $3, $4, $5, $6)
		returning seq
	`, entry.ID, entry.SponsorshipID, entry.Action, entry.PerformedBy, detailsJSON, entry.CreatedAt).
		Scan(&entry.Sequence)
	return err
}

func (s *Store) BySponsorship(ctx context.Context, sponsorshipID string) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, sponsorship_id, action, performed_by, details, seq, created_at
		from audit_log
		where sponsorship_id = $1
		order by seq
	`, sponsorshipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var rawDetails []byte
		if err := rows.Scan(&entry.ID, &entry.SponsorshipID, &entry.Action, &entry.PerformedBy,
			&rawDetails, &entry.Sequence, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(rawDetails) > 0 {
			if err := json.Unmarshal(rawDetails, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
