package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/coursebot/shop/domain"
)

// Catalog implements catalog.Repository.
type Catalog struct {
	db *sqlx.DB
}

func (r *Catalog) ListActive(ctx context.Context) ([]domain.Course, error) {
	var out []domain.Course
	err := r.db.SelectContext(ctx, &out, `SELECT `+courseColumns+` FROM courses WHERE is_active ORDER BY id`)
	return out, err
}

func (r *Catalog) Get(ctx context.Context, id int64) (domain.Course, error) {
	var c domain.Course
	err := r.db.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return c, notFound(err)
}

func (r *Catalog) Insert(ctx context.Context, c domain.Course) (domain.Course, error) {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO courses (title, description, price, material_url, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		c.Title, c.Description, c.Price, c.MaterialURL, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	return c, err
}

func (r *Catalog) Deactivate(ctx context.Context, id int64) error {
	return expectOne(r.db.ExecContext(ctx, `UPDATE courses SET is_active = FALSE WHERE id = $1`, id))
}

func (r *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM courses`)
	return n, err
}
