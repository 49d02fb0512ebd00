// Package router turns a Registry into telebot routes: slash commands, one
// callback dispatcher, and text and document handlers that honour an
// active conversation first.
package router

import (
	"log/slog"

	"github.com/m3rciful/coursebot/core/logger"
	tg "github.com/m3rciful/coursebot/core/telegram"
	"github.com/m3rciful/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation manager text is offered to first.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// Fallbacks answer updates no route claims.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Options configure Build. Only Registry is required.
type Options struct {
	Registry  *tg.Registry
	FSM       FSM
	Guard     middleware.AdminGuard
	Fallbacks Fallbacks
}

func (o Options) fallback(pick func(Fallbacks) tele.HandlerFunc) tele.HandlerFunc {
	if o.Fallbacks == nil {
		return nil
	}
	return pick(o.Fallbacks)
}

// Build returns every route for opts.Registry.
func Build(opts Options) []tg.Route {
	if opts.Registry == nil {
		return nil
	}
	routes := commandRoutes(opts)
	routes = append(routes,
		tg.Route{Endpoint: tele.OnCallback, Handler: callbackHandler(opts)},
		tg.Route{Endpoint: tele.OnText, Handler: textHandler(opts)},
		tg.Route{Endpoint: tele.OnDocument, Handler: documentHandler(opts)},
	)

	cmds, cbs := opts.Registry.Size()
	logger.Info(logger.Background(), logger.ComponentTGWire, "routes.built",
		slog.Int("commands", cmds),
		slog.Int("callbacks", cbs),
		slog.Bool("fsm", opts.FSM != nil),
	)
	return routes
}
