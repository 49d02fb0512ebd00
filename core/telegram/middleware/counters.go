package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const keyCounters = "tg.counters"

// Counters describe the replies a handler produced.
type Counters struct {
	Messages int
	Keyboard bool
}

type replyCounter struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

func (r *replyCounter) observe(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	r.messages.Add(1)
	if withKeyboard(opts) {
		r.keyboard.Store(true)
	}
	return nil
}

func withKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext counts successful replies. Sends may complete on a
// dispatcher worker, hence the atomics.
type countingContext struct {
	tele.Context
	n *replyCounter
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.n.observe(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.n.observe(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.n.observe(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.n.observe(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.n.observe(c.Context.EditOrReply(what, opts...), opts)
}

// Count hands next a context that counts replies. CountersOf reads them.
func Count(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounter{}
		c.Set(keyCounters, n)
		return next(countingContext{Context: c, n: n})
	}
}

// CountersOf returns what has been sent so far for the update of c.
func CountersOf(c tele.Context) Counters {
	n, ok := c.Get(keyCounters).(*replyCounter)
	if !ok {
		return Counters{}
	}
	return Counters{Messages: int(n.messages.Load()), Keyboard: n.keyboard.Load()}
}
