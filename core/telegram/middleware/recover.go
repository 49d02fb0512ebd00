package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic wraps a panic recovered from a handler.
var ErrPanic = errors.New("handler panicked")

// Recover turns a handler panic into an ErrPanic error.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Error(tghelpers.Ctx(c), logger.ComponentTG, "handler.panic",
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
