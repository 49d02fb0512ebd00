package router

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

func conversing(opts Options, c tele.Context) bool {
	u := c.Sender()
	return opts.FSM != nil && u != nil && opts.FSM.InProgress(u.ID)
}

// textHandler hands text to an active conversation, then to a command found
// by the whole text or its first word, then to the unknown-text fallback.
func textHandler(opts Options) tele.HandlerFunc {
	return func(c tele.Context) error {
		if conversing(opts, c) {
			return handle(c, "fsm", opts.FSM.ManagerHandler)
		}
		if name, h, ok := commandFromText(opts, c.Text()); ok {
			return handle(c, handlerName("command", name), h)
		}
		return handle(c, "fallback.text", opts.fallback(Fallbacks.UnknownText))
	}
}

func documentHandler(opts Options) tele.HandlerFunc {
	return func(c tele.Context) error {
		if conversing(opts, c) {
			return handle(c, "fsm.document", opts.FSM.ManagerHandler)
		}
		return handle(c, "fallback.document", opts.fallback(Fallbacks.UnknownDocument))
	}
}

func commandFromText(opts Options, text string) (string, tele.HandlerFunc, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, false
	}
	name, cmd, ok := opts.Registry.Lookup(text)
	if !ok && strings.HasPrefix(text, "/") {
		if first, _, cut := strings.Cut(text, " "); cut {
			name, cmd, ok = opts.Registry.Lookup(first)
		}
	}
	if !ok {
		return "", nil, false
	}
	h := cmd.Handler
	if cmd.AdminOnly {
		h = opts.Guard.Wrap(h)
	}
	return name, h, true
}
