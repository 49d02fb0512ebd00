package middleware

import (
	"log/slog"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminGuard restricts handlers to admins.
type AdminGuard struct {
	// IsAdmin decides access. Nil denies everyone.
	IsAdmin func(userID int64) bool
	// OnReject answers a denied user. Nil drops the update silently.
	OnReject tele.HandlerFunc
}

// Allowed reports whether the sender of c is an admin.
func (g AdminGuard) Allowed(c tele.Context) bool {
	u := c.Sender()
	return u != nil && g.IsAdmin != nil && g.IsAdmin(u.ID)
}

// Wrap guards next.
func (g AdminGuard) Wrap(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if g.Allowed(c) {
			return next(c)
		}
		logger.Warn(tghelpers.Ctx(c), logger.ComponentTG, "access.denied",
			slog.String("outcome", "rejected"),
		)
		if g.OnReject == nil {
			return nil
		}
		return g.OnReject(c)
	}
}
