package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, password_hash, role_id, created_at, updated_at`

func (r *usersRepo) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.RoleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `email = ?`, email)
}

func (r *usersRepo) GetUserWithRole(ctx context.Context, id string) (domain.UserWithRole, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userWithRoleColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = ?`, id)
	u, err := scanUserWithRole(row)
	if err != nil {
		return domain.UserWithRole{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) listWithRole(ctx context.Context, where string, args ...any) ([]domain.UserWithRole, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userWithRoleColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		`+where+`
		ORDER BY u.id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.UserWithRole
	for rows.Next() {
		u, err := scanUserWithRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) ListUsersWithRole(ctx context.Context) ([]domain.UserWithRole, error) {
	return r.listWithRole(ctx, "")
}

func (r *usersRepo) ListUsersByRole(ctx context.Context, roleID string) ([]domain.UserWithRole, error) {
	return r.listWithRole(ctx, `WHERE u.role_id = ?`, roleID)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.RoleID, u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, password_hash = ?, role_id = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.Name, u.PasswordHash, u.RoleID, time.Now().UTC(), u.ID,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID))
}
