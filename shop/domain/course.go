// Package domain holds the storefront entities shared by the services and
// their storage implementations.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is a sellable unit of the catalog. Courses are never hard-deleted:
// order items keep referencing them after they leave the catalog.
type Course struct {
	ID          int64           `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	MaterialURL string          `db:"material_url"`
	Active      bool            `db:"is_active"`
	CreatedAt   time.Time       `db:"created_at"`
}

// User is a chat identity that interacted with the bot at least once.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	FullName   string    `db:"full_name"`
	Username   *string   `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
}

// Stats is a best-effort operational rollup over the ledger.
type Stats struct {
	Users           int64           `db:"users"`
	Orders          int64           `db:"orders"`
	PaidOrders      int64           `db:"paid_orders"`
	PendingOrders   int64           `db:"pending_orders"`
	CancelledOrders int64           `db:"cancelled_orders"`
	Revenue         decimal.Decimal `db:"revenue"`
}
