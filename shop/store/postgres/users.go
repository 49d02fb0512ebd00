package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/coursebot/shop/domain"
)

// Users implements users.Repository.
type Users struct {
	db *sqlx.DB
}

func (r *Users) ByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return u, notFound(err)
}

func (r *Users) ByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, notFound(err)
}

// GetOrCreate relies on the unique telegram_id: a concurrent first contact
// inserts nothing and reads the winner's row.
func (r *Users) GetOrCreate(ctx context.Context, u domain.User) (domain.User, bool, error) {
	var out domain.User
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO users (telegram_id, full_name, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING `+userColumns,
		u.TelegramID, u.FullName, u.Username)
	switch {
	case err == nil:
		return out, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.User{}, false, err
	}
	out, err = r.ByTelegramID(ctx, u.TelegramID)
	return out, false, err
}

func (r *Users) PurchasedCourses(ctx context.Context, userID int64) ([]domain.Course, error) {
	var out []domain.Course
	err := r.db.SelectContext(ctx, &out, `
		SELECT DISTINCT c.id, c.title, c.description, c.price, c.material_url, c.is_active, c.created_at
		FROM courses c
		JOIN order_items oi ON oi.course_id = c.id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1 AND o.status = 'paid'
		ORDER BY c.id`, userID)
	return out, err
}
