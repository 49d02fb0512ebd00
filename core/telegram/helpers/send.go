package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/format"
	"github.com/m3rciful/coursebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var queue atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes plain sends through d. Nil sends inline.
func SetDispatcher(d *sender.Dispatcher) { queue.Store(d) }

// deliver queues run when a dispatcher is set. A full or closed queue falls
// back to an inline call so the reply is not lost.
func deliver(c tele.Context, action string, run func() error) error {
	d := queue.Load()
	if d == nil {
		return run()
	}
	ctx := Ctx(c)
	err := d.Enqueue(ctx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.ComponentSender, "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

func htmlOptions(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// SendText sends text literally. It is escaped because the bot sends
// everything in HTML mode.
func SendText(c tele.Context, text string) error {
	opts := htmlOptions(nil)
	text = format.Escape(text)
	return deliver(c, "send.text", func() error { return c.Send(text, opts) })
}

// SendHTML sends an HTML message with link previews off.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := htmlOptions(markup)
	return deliver(c, "send.html", func() error { return c.Send(text, opts) })
}

// EditOrSendHTML replaces the message behind a callback, or sends a new one.
// It always runs inline: the caller answers the callback next and the
// screen must already show the new state.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	err := c.EditOrSend(text, htmlOptions(markup))
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

// Answered reports whether the callback of c has been answered.
func Answered(c tele.Context) bool {
	done, _ := c.Get(keyAnswered).(bool)
	return done
}

func answer(c tele.Context, text string, alert bool) error {
	if c.Callback() == nil {
		return SendText(c, text)
	}
	c.Set(keyAnswered, true)
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: alert})
}

// Alert answers a callback with a popup. Other updates get a plain message.
func Alert(c tele.Context, text string) error { return answer(c, text, true) }

// Toast answers a callback with a short notice. Other updates get a plain message.
func Toast(c tele.Context, text string) error { return answer(c, text, false) }
