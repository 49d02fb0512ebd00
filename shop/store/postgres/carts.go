package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Carts implements cart.Store on the carts table, so carts survive restarts
// and are shared between replicas.
type Carts struct {
	db *sqlx.DB
}

func (r *Carts) Get(ctx context.Context, userID int64) ([]int64, error) {
	var ids pq.Int64Array
	err := r.db.QueryRowxContext(ctx, `SELECT course_ids FROM carts WHERE user_key = $1`, userID).Scan(&ids)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []int64(ids), nil
}

func (r *Carts) Set(ctx context.Context, userID int64, courseIDs []int64) error {
	if len(courseIDs) == 0 {
		_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_key = $1`, userID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (user_key, course_ids, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_key) DO UPDATE
		SET course_ids = EXCLUDED.course_ids, updated_at = now()`,
		userID, pq.Array(courseIDs))
	return err
}
