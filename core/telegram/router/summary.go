package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handle runs h under name and writes one summary line for the update.
// A nil h is logged as skipped.
func handle(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.Named(c, name)

	var err error
	status := "ok"
	switch {
	case h == nil:
		status = "skip"
	default:
		if err = h(c); err != nil {
			status = "fail"
		}
	}

	n := middleware.CountersOf(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", n.Messages),
		slog.Bool("kb", n.Keyboard),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}, extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("outcome", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errCode(err)),
		)
	}
	logger.Info(ctx, logger.ComponentTG, "handler.handled", attrs...)
	return err
}

// errCode prefers a Code() anywhere in the chain.
func errCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	if errors.Is(err, middleware.ErrPanic) {
		return "PANIC"
	}
	return "INTERNAL"
}

// handlerName makes a log-friendly name from a command or callback key.
func handlerName(kind, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return kind + "." + strings.ReplaceAll(key, " ", "_")
}
