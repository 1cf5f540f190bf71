package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/jackc/pgx/v5"
)

type rolesRepo struct {
	q querier
}

const roleColumns = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (domain.Role, error) {
	var role domain.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	role, err := scanRole(r.q.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	role, err := scanRole(r.q.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	// COLLATE "C" keeps ordering byte-wise, matching the sqlite driver.
	rows, err := r.q.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Role, error) {
		return scanRole(row)
	})
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO roles (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt,
	)
	return mapErr(err)
}

func (r *rolesRepo) UpdateRole(ctx context.Context, role domain.Role) error {
	return expectOne(r.q.Exec(ctx,
		`UPDATE roles SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		role.Name, role.Description, time.Now().UTC(), role.ID,
	))
}

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID string) error {
	return expectOne(r.q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID))
}

func (r *rolesRepo) CountMembers(ctx context.Context, roleID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
