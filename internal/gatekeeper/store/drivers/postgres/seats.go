package postgres

import (
	"context"
	"time"
)

type seatsRepo struct {
	q querier
}

func (r *seatsRepo) Claim(ctx context.Context, userID string) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO superadmin_seat (id, user_id, claimed_at) VALUES (1, $1, $2)`,
		userID, time.Now().UTC(),
	)
	return mapErr(err)
}

func (r *seatsRepo) Holder(ctx context.Context) (string, error) {
	var userID string
	if err := r.q.QueryRow(ctx, `SELECT user_id FROM superadmin_seat WHERE id = 1`).Scan(&userID); err != nil {
		return "", mapNotFound(err)
	}
	return userID, nil
}
