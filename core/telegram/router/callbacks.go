package router

import (
	"log/slog"

	"github.com/m3rciful/coursebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// callbackHandler dispatches every button press by key. Telegram keeps a
// spinner on the button until the press is answered, so an unanswered
// press gets an empty answer afterwards.
func callbackHandler(opts Options) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		defer func() {
			if !tghelpers.Answered(c) {
				_ = c.Respond()
			}
		}()

		key := callbacks.Of(c).Key
		attrs := []slog.Attr{slog.String("cb_key", key)}
		h, ok := opts.Registry.Callback(key)
		if !ok {
			h = opts.fallback(Fallbacks.UnknownCallback)
			attrs = append(attrs, slog.String("reason", "not_found"))
		}
		return handle(c, handlerName("callback", key), h, attrs...)
	}
}
