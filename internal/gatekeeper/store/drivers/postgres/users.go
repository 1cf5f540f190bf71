package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/jackc/pgx/v5"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, name, password_hash, role_id, created_at, updated_at`

func (r *usersRepo) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.RoleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `email = $1`, email)
}

func (r *usersRepo) GetUserWithRole(ctx context.Context, id string) (domain.UserWithRole, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+userWithRoleColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	u, err := scanUserWithRole(row)
	if err != nil {
		return domain.UserWithRole{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) listWithRole(ctx context.Context, where string, args ...any) ([]domain.UserWithRole, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+userWithRoleColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		`+where+`
		ORDER BY u.id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserWithRole, error) {
		return scanUserWithRole(row)
	})
}

func (r *usersRepo) ListUsersWithRole(ctx context.Context) ([]domain.UserWithRole, error) {
	return r.listWithRole(ctx, "")
}

func (r *usersRepo) ListUsersByRole(ctx context.Context, roleID string) ([]domain.UserWithRole, error) {
	return r.listWithRole(ctx, `WHERE u.role_id = $1`, roleID)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.RoleID, u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	return expectOne(r.q.Exec(ctx, `
		UPDATE users SET email = $1, name = $2, password_hash = $3, role_id = $4, updated_at = $5
		WHERE id = $6`,
		u.Email, u.Name, u.PasswordHash, u.RoleID, time.Now().UTC(), u.ID,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return expectOne(r.q.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHash, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return expectOne(r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID))
}
