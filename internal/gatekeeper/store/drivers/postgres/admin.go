package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// CreateDatabase creates a database on the server s is connected to. Used by
// tests and by operators provisioning a fresh instance.
func CreateDatabase(ctx context.Context, s *Store, name string) error {
	_, err := s.pool.Exec(ctx, `CREATE DATABASE `+pgx.Identifier{name}.Sanitize())
	return mapErr(err)
}
