// Package bot is the Telegram storefront: buyer commands and callbacks, the
// admin panel and the course wizard, all on top of the shop services.
package bot

import (
	"errors"
	"strings"

	tg "github.com/m3rciful/coursebot/core/telegram"
	"github.com/m3rciful/coursebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/middleware"
	"github.com/m3rciful/coursebot/core/telegram/router"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/shop/cart"
	"github.com/m3rciful/coursebot/shop/catalog"
	"github.com/m3rciful/coursebot/shop/checkout"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/stats"
	"github.com/m3rciful/coursebot/shop/users"

	tele "gopkg.in/telebot.v4"
)

// Deps are the services the bot presents.
type Deps struct {
	Catalog  *catalog.Service
	Cart     *cart.Service
	Users    *users.Service
	Checkout *checkout.Orchestrator
	Stats    *stats.Service
	// Gateway backs /paystatus. Nil disables the command.
	Gateway  payment.Gateway
	Currency string
	// IsAdmin decides admin access. Nil denies everyone.
	IsAdmin func(telegramID int64) bool
}

// Bot holds the handlers. Build it with New, then Register and Routes.
type Bot struct {
	d      Deps
	fsm    state.Manager
	wizard *state.Flow
	admin  middleware.AdminGuard
}

var _ router.Fallbacks = (*Bot)(nil)

// New wires the handlers and binds the course wizard on fsm.
func New(d Deps, fsm state.Manager) *Bot {
	if fsm == nil {
		fsm = state.NewMemoryManager()
	}
	b := &Bot{d: d, fsm: fsm}
	b.admin = middleware.AdminGuard{IsAdmin: d.IsAdmin, OnReject: b.rejectAdmin}
	b.wizard = b.newCourseWizard()
	b.wizard.Register(fsm)
	return b
}

// Register adds commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	type entry struct {
		name string
		cmd  commands.Command
	}
	cmds := []entry{
		{"/start", commands.Command{Handler: b.start, Description: "Main menu"}},
		{"/catalog", commands.Command{Handler: b.showCatalog, Description: "Browse courses"}},
		{"/cart", commands.Command{Handler: b.showCart, Description: "Your cart"}},
		{"/mycourses", commands.Command{Handler: b.myCourses, Description: "Purchased courses"}},
		{"/cancel", commands.Command{Handler: b.cancel, Description: "Cancel the current input", Hidden: true}},
		{"/admin", commands.Command{Handler: b.adminMenu, Description: "Admin panel", AdminOnly: true}},
	}
	if b.d.Gateway != nil {
		cmds = append(cmds, entry{"/paystatus", commands.Command{Handler: b.payStatus, Description: "Look a payment up at the provider", AdminOnly: true}})
	}
	var errs []error
	for _, c := range cmds {
		errs = append(errs, reg.RegisterCommand(c.name, c.cmd))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	callbacks := []struct {
		key   string
		h     tele.HandlerFunc
		admin bool
	}{
		{cbMenu, b.menu, false},
		{cbCatalog, b.showCatalog, false},
		{cbCourse, b.showCourse, false},
		{cbCartAdd, b.addToCart, false},
		{cbCartUnpick, b.unpick, false},
		{cbCartRemove, b.removeFromCart, false},
		{cbCart, b.showCart, false},
		{cbCheckout, b.checkout, false},
		{cbMyCourses, b.myCourses, false},
		{cbAdmin, b.adminMenu, true},
		{cbAdminAdd, b.adminAdd, true},
		{cbAdminDelete, b.adminHideList, true},
		{cbAdminHide, b.adminHide, true},
		{cbAdminStats, b.adminStats, true},
		{cbAdminCancel, b.cancel, true},
	}
	for _, cb := range callbacks {
		h := cb.h
		if cb.admin {
			h = b.admin.Wrap(h)
		}
		if err := reg.RegisterCallback(cb.key, h); err != nil {
			return err
		}
	}
	return nil
}

// Routes builds the command, callback, text and document routes for reg.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	return router.Build(router.Options{
		Registry:  reg,
		FSM:       b.fsm,
		Guard:     b.admin,
		Fallbacks: b,
	})
}

// UnknownText implements router.Fallbacks.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textUnknown) }
}

// UnknownDocument implements router.Fallbacks.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textUnexpectedDoc) }
}

// UnknownCallback implements router.Fallbacks.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.Toast(c, textStaleButton) }
}

func (b *Bot) rejectAdmin(c tele.Context) error {
	return tghelpers.Alert(c, textAdminOnly)
}

func (b *Bot) isAdmin(c tele.Context) bool { return b.admin.Allowed(c) }

// fail shows err to the user. Expected outcomes stop here; anything else goes
// back to the router so the handler summary records it.
func (b *Bot) fail(c tele.Context, err error) error {
	_ = tghelpers.Alert(c, ErrorText(err))
	if expected(err) || errors.Is(err, domain.ErrGateway) {
		return nil
	}
	return err
}

func customer(c tele.Context) checkout.Customer {
	u := c.Sender()
	return checkout.Customer{
		TelegramID: u.ID,
		FullName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username:   u.Username,
	}
}
