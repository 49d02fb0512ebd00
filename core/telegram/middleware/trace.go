// Package middleware holds the handler wrappers every update passes through.
package middleware

import (
	"log/slog"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Trace gives the update a fresh logging context and logs its receipt.
// Receipts are debug lines and go through the debug sampler.
func Trace(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.Attach(c, logger.Background())
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, logger.ComponentTG, "update.received", receipt(c)...)
		}
		return next(c)
	}
}

func receipt(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", UpdateKind(c.Update()))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	if cb := c.Callback(); cb != nil {
		d := callbacks.Parse(cb)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(d.Key, 64)))
		if d.Payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(d.Payload, 128)))
		}
	} else if text := c.Text(); text != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
	}
	return attrs
}
