package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConstraint is a foreign key or check violation, e.g. deleting a role
	// that users still reference.
	ErrConstraint = errors.New("store: constraint violation")
)

// Repos groups the sub-repositories. Both the root Store and a transaction
// expose them, so service code reads the same either way.
type Repos interface {
	Users() Users
	Roles() Roles
	Seats() SuperAdminSeats
}

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Tx deliberately lacks WithTx so transactions cannot nest.
type Store interface {
	Repos

	ApplyMigrations() error

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the repositories.
type Tx interface {
	Repos
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and uniqueness checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserWithRole returns a user joined with its role.
	GetUserWithRole(ctx context.Context, id string) (domain.UserWithRole, error)

	// ListUsersWithRole returns every user ordered by id, which is creation order.
	ListUsersWithRole(ctx context.Context) ([]domain.UserWithRole, error)

	// ListUsersByRole returns the members of a role ordered by id.
	ListUsersByRole(ctx context.Context, roleID string) ([]domain.UserWithRole, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// ErrAlreadyExists on duplicate email, ErrConstraint on unknown role.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser rewrites email, name, password_hash and role_id and bumps updated_at.
	UpdateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the stored hash, used when rehashing on login.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// DeleteUser removes the user; its SuperAdmin seat, if any, goes with it.
	DeleteUser(ctx context.Context, userID string) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListAll returns every role ordered by name.
	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole inserts a role. ErrAlreadyExists when the name is taken.
	CreateRole(ctx context.Context, r domain.Role) error

	// UpdateRole sets name and description. ErrAlreadyExists on name collision.
	UpdateRole(ctx context.Context, r domain.Role) error

	// DeleteRole removes a role. ErrConstraint while users reference it.
	DeleteRole(ctx context.Context, roleID string) error

	// CountMembers returns how many users hold the role.
	CountMembers(ctx context.Context, roleID string) (int, error)
}

// SuperAdminSeats models the single SuperAdmin slot. The backing table has a
// primary key pinned to one value so only one holder can ever be recorded;
// two racing bootstraps cannot both commit.
type SuperAdminSeats interface {
	// Claim records userID as the holder. ErrAlreadyExists if the seat is taken.
	Claim(ctx context.Context, userID string) error

	// Holder returns the current holder's user id, or ErrNotFound.
	Holder(ctx context.Context) (string, error)
}
