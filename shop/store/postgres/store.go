// Package postgres implements the shop repositories on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/ledger"
)

const uniqueViolation = "23505"

// Store groups the repositories over one connection pool.
type Store struct {
	db *sqlx.DB
}

// New wraps an open pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Catalog returns the catalog.Repository view.
func (s *Store) Catalog() *Catalog { return &Catalog{db: s.db} }

// Users returns the users.Repository view.
func (s *Store) Users() *Users { return &Users{db: s.db} }

// Ledger returns the ledger.Store view.
func (s *Store) Ledger() *Ledger { return &Ledger{db: s.db} }

// Carts returns the cart.Store view.
func (s *Store) Carts() *Carts { return &Carts{db: s.db} }

// Stats returns the stats.Source view.
func (s *Store) Stats() *Stats { return &Stats{db: s.db} }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Ledger implements ledger.Store.
type Ledger struct {
	db *sqlx.DB
}

// InTx runs fn inside a READ COMMITTED transaction. Row locks taken by the
// ForUpdate statements are held until commit.
func (l *Ledger) InTx(ctx context.Context, fn func(tx ledger.Tx) error) (err error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Order implements ledger.Store.
func (l *Ledger) Order(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	if err := l.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return domain.Order{}, notFound(err)
	}
	items, err := orderItems(ctx, l.db, []int64{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

// OrdersByUser implements ledger.Store.
func (l *Ledger) OrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	var orders []domain.Order
	if err := l.db.SelectContext(ctx, &orders,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := orderItems(ctx, l.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

const (
	courseColumns  = `id, title, description, price, material_url, is_active, created_at`
	orderColumns   = `id, user_id, status, total_amount, created_at`
	paymentColumns = `id, order_id, external_id, amount, status, created_at, paid_at`
	userColumns    = `id, telegram_id, full_name, username, created_at`
)

func orderItems(ctx context.Context, q sqlx.QueryerContext, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	var rows []domain.OrderItem
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT oi.id, oi.order_id, oi.course_id, oi.price,
		       c.title AS course_title, c.material_url
		FROM order_items oi
		JOIN courses c ON c.id = oi.course_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for _, it := range rows {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) ActiveCourses(ctx context.Context, ids []int64) ([]domain.Course, error) {
	var out []domain.Course
	err := t.tx.SelectContext(ctx, &out,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1) AND is_active ORDER BY id`,
		pq.Array(ids))
	return out, err
}

func (t *ledgerTx) InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		o.UserID, o.Status, o.TotalAmount, o.CreatedAt,
	).Scan(&o.ID)
	return o, err
}

func (t *ledgerTx) InsertItem(ctx context.Context, it domain.OrderItem) (domain.OrderItem, error) {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO order_items (order_id, course_id, price)
		VALUES ($1, $2, $3)
		RETURNING id`,
		it.OrderID, it.CourseID, it.Price,
	).Scan(&it.ID)
	return it, err
}

func (t *ledgerTx) OrderForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := t.tx.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return o, notFound(err)
}

func (t *ledgerTx) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	items, err := orderItems(ctx, t.tx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	return items[orderID], nil
}

func (t *ledgerTx) InsertPayment(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO payments (order_id, external_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.OrderID, p.ExternalID, p.Amount, p.Status, p.CreatedAt,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return domain.Payment{}, domain.Invalid("payment", "order or external id already has a payment")
	}
	return p, err
}

func (t *ledgerTx) PaymentByOrder(ctx context.Context, orderID int64) (domain.Payment, error) {
	var p domain.Payment
	err := t.tx.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	return p, notFound(err)
}

func (t *ledgerTx) PaymentForUpdate(ctx context.Context, externalID string) (domain.Payment, error) {
	var p domain.Payment
	err := t.tx.GetContext(ctx, &p,
		`SELECT `+paymentColumns+` FROM payments WHERE external_id = $1 FOR UPDATE`, externalID)
	return p, notFound(err)
}

func (t *ledgerTx) UpdatePayment(ctx context.Context, p domain.Payment) error {
	return expectOne(t.tx.ExecContext(ctx,
		`UPDATE payments SET status = $2, paid_at = $3 WHERE id = $1`,
		p.ID, p.Status, p.PaidAt))
}

func (t *ledgerTx) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	return expectOne(t.tx.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status))
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
