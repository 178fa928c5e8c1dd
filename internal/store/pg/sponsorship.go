package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
)

var _ sponsorship.Store = (*Store)(nil)

const requestColumns = `id, child_id, coalesce(requester_id,''), requester_name, requester_email,
	status, is_long_term, terms_accepted, coalesce(rejection_reason,''), created_at, updated_at`

const sponsorshipColumns = `id, sponsor_id, child_id, status, start_date, end_date,
	coalesce(termination_reason,''), coalesce(termination_comment,''), is_anonymous, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, req *sponsorship.Request) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sponsorship_requests
			(id, child_id, requester_id, requester_name, requester_email,
			 status, is_long_term, terms_accepted, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, req.ID, req.ChildID, nullIfEmpty(req.RequesterID), req.RequesterName, req.RequesterEmail,
		string(req.Status), req.LongTerm, req.TermsAccepted, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return sponsorship.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (sponsorship.Request, error) {
	if s.db == nil {
		return sponsorship.Request{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+requestColumns+`
		from sponsorship_requests
		where id = $1
	`, id)
	return scanRequest(row)
}

func (s *Store) ListRequests(ctx context.Context, status sponsorship.RequestStatus) ([]sponsorship.Request, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `select ` + requestColumns + ` from sponsorship_requests`
	args := []any{}
	if status != "" {
		query += ` where status = $1`
		args = append(args, string(status))
	}
	query += ` order by id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sponsorship.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) ApproveRequest(ctx context.Context, requestID string, sp *sponsorship.Sponsorship) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		select status from sponsorship_requests where id = $1 for update
	`, requestID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sponsorship.ErrNotFound
	}
	if err != nil {
		return err
	}
	if sponsorship.RequestStatus(status) != sponsorship.RequestPending {
		return fmt.Errorf("%w: request is %s", sponsorship.ErrInvalidState, status)
	}

	if _, err := tx.ExecContext(ctx, `
		update sponsorship_requests
		set status = $2, updated_at = $3
		where id = $1
	`, requestID, string(sponsorship.RequestApproved), sp.CreatedAt); err != nil {
		return err
	}
	if err := insertSponsorship(ctx, tx, sp); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RejectRequest(ctx context.Context, requestID, reason string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sponsorship_requests
		set status = $2, rejection_reason = nullif($3,''), updated_at = now()
		where id = $1 and status = $4
	`, requestID, string(sponsorship.RequestRejected), reason, string(sponsorship.RequestPending))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		// Distinguish a missing request from an already-settled one.
		var status string
		err := s.db.QueryRowContext(ctx, `
			select status from sponsorship_requests where id = $1
		`, requestID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sponsorship.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: request is %s", sponsorship.ErrInvalidState, status)
	}
	return nil
}

func (s *Store) CreateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if err := insertSponsorship(ctx, s.db, sp); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetSponsorship(ctx context.Context, id string) (sponsorship.Sponsorship, error) {
	if s.db == nil {
		return sponsorship.Sponsorship{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+sponsorshipColumns+`
		from sponsorships
		where id = $1
	`, id)
	return scanSponsorship(row)
}

func (s *Store) ActiveByChild(ctx context.Context, childID string) (sponsorship.Sponsorship, error) {
	if s.db == nil {
		return sponsorship.Sponsorship{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+sponsorshipColumns+`
		from sponsorships
		where child_id = $1 and status = $2
	`, childID, string(sponsorship.StatusActive))
	return scanSponsorship(row)
}

func (s *Store) ListBySponsor(ctx context.Context, sponsorID string) ([]sponsorship.Sponsorship, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+sponsorshipColumns+`
		from sponsorships
		where sponsor_id = $1
		order by id
	`, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sponsorship.Sponsorship
	for rows.Next() {
		sp, err := scanSponsorship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) Terminate(ctx context.Context, id string, from []sponsorship.Status, endDate time.Time, reason, comment string) (sponsorship.Sponsorship, error) {
	if s.db == nil {
		return sponsorship.Sponsorship{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockSponsorship(ctx, tx, id)
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	if !statusIn(current, from) {
		return sponsorship.Sponsorship{}, fmt.Errorf("%w: sponsorship is %s", sponsorship.ErrInvalidState, current)
	}

	row := tx.QueryRowContext(ctx, `
		update sponsorships
		set status = $2, end_date = $3, termination_reason = $4,
		    termination_comment = nullif($5,''), updated_at = now()
		where id = $1
		returning `+sponsorshipColumns+`
	`, id, string(sponsorship.StatusEnded), endDate, reason, comment)
	ended, err := scanSponsorship(row)
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	if err := tx.Commit(); err != nil {
		return sponsorship.Sponsorship{}, err
	}
	return ended, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, from, to sponsorship.Status) (sponsorship.Sponsorship, error) {
	if s.db == nil {
		return sponsorship.Sponsorship{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		update sponsorships
		set status = $3, updated_at = now()
		where id = $1 and status = $2
		returning `+sponsorshipColumns+`
	`, id, string(from), string(to))
	sp, err := scanSponsorship(row)
	if errors.Is(err, sponsorship.ErrNotFound) {
		// Distinguish a missing row from a state mismatch.
		var status string
		inner := s.db.QueryRowContext(ctx, `
			select status from sponsorships where id = $1
		`, id).Scan(&status)
		if errors.Is(inner, sql.ErrNoRows) {
			return sponsorship.Sponsorship{}, sponsorship.ErrNotFound
		}
		if inner != nil {
			return sponsorship.Sponsorship{}, inner
		}
		return sponsorship.Sponsorship{}, fmt.Errorf("%w: sponsorship is %s", sponsorship.ErrInvalidState, status)
	}
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	return sp, nil
}

func (s *Store) TransferChild(ctx context.Context, childID string, replacement *sponsorship.Sponsorship) (sponsorship.Sponsorship, error) {
	if s.db == nil {
		return sponsorship.Sponsorship{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentID, currentSponsor string
	err = tx.QueryRowContext(ctx, `
		select id, sponsor_id
		from sponsorships
		where child_id = $1 and status = $2
		for update
	`, childID, string(sponsorship.StatusActive)).Scan(&currentID, &currentSponsor)
	if errors.Is(err, sql.ErrNoRows) {
		return sponsorship.Sponsorship{}, sponsorship.ErrNotFound
	}
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	if currentSponsor == replacement.SponsorID {
		return sponsorship.Sponsorship{}, fmt.Errorf("%w: child already sponsored by %s", sponsorship.ErrConflict, currentSponsor)
	}

	row := tx.QueryRowContext(ctx, `
		update sponsorships
		set status = $2, end_date = $3, termination_reason = $4, updated_at = $3
		where id = $1
		returning `+sponsorshipColumns+`
	`, currentID, string(sponsorship.StatusEnded), replacement.StartDate, sponsorship.ReasonTransfer)
	ended, err := scanSponsorship(row)
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	if err := insertSponsorship(ctx, tx, replacement); err != nil {
		return sponsorship.Sponsorship{}, err
	}
	if err := tx.Commit(); err != nil {
		return sponsorship.Sponsorship{}, err
	}
	return ended, nil
}

func (s *Store) CreateAssignmentRequest(ctx context.Context, req *sponsorship.AssignmentRequest) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into assignment_requests (id, sponsor_id, child_id, kind, notes, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, req.ID, req.SponsorID, nullIfEmpty(req.ChildID), req.Kind, nullIfEmpty(req.Notes), req.CreatedAt)
	return err
}

func (s *Store) ListAssignmentRequests(ctx context.Context, sponsorID string) ([]sponsorship.AssignmentRequest, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, sponsor_id, coalesce(child_id,''), kind, coalesce(notes,''), created_at
		from assignment_requests
		where sponsor_id = $1
		order by id
	`, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sponsorship.AssignmentRequest
	for rows.Next() {
		var req sponsorship.AssignmentRequest
		if err := rows.Scan(&req.ID, &req.SponsorID, &req.ChildID, &req.Kind, &req.Notes, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// --- helpers ---

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertSponsorship relies on the partial unique index over
// (child_id) where status = 'active' to enforce one active sponsorship per
// child even under concurrent writers.
func insertSponsorship(ctx context.Context, db execer, sp *sponsorship.Sponsorship) error {
	_, err := db.ExecContext(ctx, `
		insert into sponsorships
			(id, sponsor_id, child_id, status, start_date, end_date,
			 termination_reason, termination_comment, is_anonymous, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sp.ID, sp.SponsorID, sp.ChildID, string(sp.Status), sp.StartDate, sp.EndDate,
		nullIfEmpty(sp.TerminationReason), nullIfEmpty(sp.TerminationComment),
		sp.Anonymous, sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return sponsorship.ErrConflict
		}
		return err
	}
	return nil
}

func lockSponsorship(ctx context.Context, tx *sql.Tx, id string) (sponsorship.Status, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
		select status from sponsorships where id = $1 for update
	`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sponsorship.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return sponsorship.Status(status), nil
}

func statusIn(status sponsorship.Status, allowed []sponsorship.Status) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (sponsorship.Request, error) {
	var req sponsorship.Request
	var status string
	err := row.Scan(&req.ID, &req.ChildID, &req.RequesterID, &req.RequesterName, &req.RequesterEmail,
		&status, &req.LongTerm, &req.TermsAccepted, &req.RejectionReason, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sponsorship.Request{}, sponsorship.ErrNotFound
	}
	if err != nil {
		return sponsorship.Request{}, err
	}
	req.Status = sponsorship.RequestStatus(status)
	return req, nil
}

func scanSponsorship(row rowScanner) (sponsorship.Sponsorship, error) {
	var sp sponsorship.Sponsorship
	var status string
	var end sql.NullTime
	err := row.Scan(&sp.ID, &sp.SponsorID, &sp.ChildID, &status, &sp.StartDate, &end,
		&sp.TerminationReason, &sp.TerminationComment, &sp.Anonymous, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sponsorship.Sponsorship{}, sponsorship.ErrNotFound
	}
	if err != nil {
		return sponsorship.Sponsorship{}, err
	}
	sp.Status = sponsorship.Status(status)
	if end.Valid {
		t := end.Time
		sp.EndDate = &t
	}
	return sp, nil
}
