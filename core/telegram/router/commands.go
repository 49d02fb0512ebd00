package router

import (
	tg "github.com/m3rciful/coursebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

func commandRoutes(opts Options) []tg.Route {
	names := opts.Registry.Names()
	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		_, cmd, _ := opts.Registry.Lookup(name)
		routes = append(routes, tg.Route{Endpoint: name, Handler: commandHandler(opts, name, cmd.Handler, cmd.AdminOnly)})
	}
	return routes
}

func commandHandler(opts Options, name string, h tele.HandlerFunc, adminOnly bool) tele.HandlerFunc {
	if adminOnly {
		h = opts.Guard.Wrap(h)
	}
	label := handlerName("command", name)
	return func(c tele.Context) error { return handle(c, label, h) }
}
