// Package helpers keeps per-update state on tele.Context and wraps the
// outgoing calls handlers make.
package helpers

import (
	"context"

	"github.com/m3rciful/coursebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys on tele.Context.
const (
	keyCtx      = "tg.ctx"
	keyAnswered = "tg.answered"
)

// Ctx returns the logging context of the update. The first call derives it
// from the update and caches it on c.
func Ctx(c tele.Context) context.Context {
	if ctx, ok := c.Get(keyCtx).(context.Context); ok && ctx != nil {
		return ctx
	}
	return Attach(c, logger.Background())
}

// Attach derives the update context from parent: rid plus update, user and
// chat ids. It replaces whatever c carried.
func Attach(c tele.Context, parent context.Context) context.Context {
	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(parent, logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(keyCtx, ctx)
	return ctx
}

// Named tags the update context with the handler about to run.
func Named(c tele.Context, handler string) context.Context {
	ctx := Ctx(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(keyCtx, ctx)
	return ctx
}
