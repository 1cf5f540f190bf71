package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnIdleTime   = 5 * time.Minute
	dbPingTimeout         = 5 * time.Second
)

// querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn (a postgres:// URL or key=value string).
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.HealthCheckPeriod = poolHealthCheckPeriod
	cfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	// Rollback after a successful commit is a harmless ErrTxClosed.
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	return mapErr(tx.Commit(ctx))
}

func (s *Store) Users() store.Users          { return &usersRepo{q: s.pool} }
func (s *Store) Roles() store.Roles          { return &rolesRepo{q: s.pool} }
func (s *Store) Seats() store.SuperAdminSeats { return &seatsRepo{q: s.pool} }

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Users() store.Users          { return &usersRepo{q: t.tx} }
func (t *txStore) Roles() store.Roles          { return &rolesRepo{q: t.tx} }
func (t *txStore) Seats() store.SuperAdminSeats { return &seatsRepo{q: t.tx} }

// SQLSTATE codes we translate.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
)

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	case foreignKeyViolation, checkViolation, notNullViolation:
		return fmt.Errorf("%w: %w", store.ErrConstraint, err)
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const userWithRoleColumns = `
	u.id, u.email, u.name, u.password_hash, u.role_id, u.created_at, u.updated_at,
	r.id, r.name, r.description, r.created_at, r.updated_at`

func scanUserWithRole(row pgx.Row) (domain.UserWithRole, error) {
	var out domain.UserWithRole
	err := row.Scan(
		&out.ID, &out.Email, &out.Name, &out.PasswordHash, &out.RoleID, &out.CreatedAt, &out.UpdatedAt,
		&out.Role.ID, &out.Role.Name, &out.Role.Description, &out.Role.CreatedAt, &out.Role.UpdatedAt,
	)
	return out, err
}
