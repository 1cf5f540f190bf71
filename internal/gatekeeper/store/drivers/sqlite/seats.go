package sqlite

import (
	"context"
	"time"
)

type seatsRepo struct {
	db dbtx
}

func (r *seatsRepo) Claim(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO superadmin_seat (id, user_id, claimed_at) VALUES (1, ?, ?)`,
		userID, time.Now().UTC(),
	)
	return mapErr(err)
}

func (r *seatsRepo) Holder(ctx context.Context) (string, error) {
	var userID string
	if err := r.db.QueryRowContext(ctx, `SELECT user_id FROM superadmin_seat WHERE id = 1`).Scan(&userID); err != nil {
		return "", mapNotFound(err)
	}
	return userID, nil
}
