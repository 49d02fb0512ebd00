package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/coursebot/shop/domain"
)

// Stats implements stats.Source.
type Stats struct {
	db *sqlx.DB
}

// Snapshot reads every figure in one statement, so the numbers come from a
// single snapshot. It is an operational metric, not an accounting report.
func (r *Stats) Snapshot(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	err := r.db.GetContext(ctx, &st, `
		SELECT
			(SELECT count(*) FROM users)                                  AS users,
			count(o.id)                                                   AS orders,
			count(o.id) FILTER (WHERE o.status = 'paid')                  AS paid_orders,
			count(o.id) FILTER (WHERE o.status = 'pending')               AS pending_orders,
			count(o.id) FILTER (WHERE o.status = 'cancelled')             AS cancelled_orders,
			(SELECT COALESCE(sum(amount), 0) FROM payments
			  WHERE status = 'succeeded')                                 AS revenue
		FROM orders o`)
	return st, err
}
