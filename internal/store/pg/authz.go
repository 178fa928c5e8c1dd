package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radiopv/assistantpv-sub000/internal/authz"
)

var _ authz.Store = (*Store)(nil)

func (s *Store) AllGrants(ctx context.Context) (map[authz.Role][]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select role, permission
		from role_permissions
		order by role, permission
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := map[authz.Role][]string{}
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, err
		}
		grants[authz.Role(role)] = append(grants[authz.Role(role)], perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *Store) Grant(ctx context.Context, role authz.Role, permission string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role, permission)
		values ($1, $2)
	`, string(role), permission)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authz.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, role authz.Role, permission string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from role_permissions
		where role = $1 and permission = $2
	`, string(role), permission)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func (s *Store) SetOverride(ctx context.Context, actorID, permission string, allowed bool) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into permission_overrides (actor_id, permission, allowed, updated_at)
		values ($1, $2, $3, now())
		on conflict (actor_id, permission) do update
		set allowed = excluded.allowed, updated_at = now()
	`, actorID, permission, allowed)
	return err
}

func (s *Store) OverridesFor(ctx context.Context, actorID string) (map[string]bool, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select permission, allowed
		from permission_overrides
		where actor_id = $1
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := map[string]bool{}
	for rows.Next() {
		var perm string
		var allowed bool
		if err := rows.Scan(&perm, &allowed); err != nil {
			return nil, err
		}
		overrides[perm] = allowed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Store) GetPage(ctx context.Context, pageID string) (authz.PageConfig, error) {
	if s.db == nil {
		return authz.PageConfig{}, errors.New("database connection unavailable")
	}
	var cfg authz.PageConfig
	var role string
	err := s.db.QueryRowContext(ctx, `
		select page_id, visible, required_role, updated_at
		from page_settings
		where page_id = $1
	`, pageID).Scan(&cfg.PageID, &cfg.Visible, &role, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.PageConfig{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.PageConfig{}, err
	}
	cfg.RequiredRole = authz.Role(role)
	return cfg, nil
}

func (s *Store) UpsertPage(ctx context.Context, cfg authz.PageConfig) (authz.PageConfig, error) {
	if s.db == nil {
		return authz.PageConfig{}, errors.New("database connection unavailable")
	}
	var out authz.PageConfig
	var role string
	err := s.db.QueryRowContext(ctx, `
		insert into page_settings (page_id, visible, required_role, updated_at)
		values ($1, $2, $3, $4)
		on conflict (page_id) do update
		set visible = excluded.visible,
		    required_role = excluded.required_role,
		    updated_at = excluded.updated_at
		returning page_id, visible, required_role, updated_at
	`, cfg.PageID, cfg.Visible, string(cfg.RequiredRole), cfg.UpdatedAt).
		Scan(&out.PageID, &out.Visible, &role, &out.UpdatedAt)
	if err != nil {
		return authz.PageConfig{}, err
	}
	out.RequiredRole = authz.Role(role)
	return out, nil
}
