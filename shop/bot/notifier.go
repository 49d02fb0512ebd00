package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/sender"
	"github.com/m3rciful/coursebot/shop/domain"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned while the Telegram runtime is not running.
var ErrNotAttached = errors.New("notifier: telegram runtime is not attached")

// MessageSender is the part of *tele.Bot the notifier uses.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier pushes order outcomes to buyers outside of any update. The webhook
// server may start before the bot, so the sender is attached later.
type Notifier struct {
	mu   sync.RWMutex
	api  MessageSender
	disp *sender.Dispatcher
}

// NewNotifier returns a detached notifier.
func NewNotifier() *Notifier { return &Notifier{} }

// Attach starts delivering through api. A nil dispatcher sends inline.
func (n *Notifier) Attach(api MessageSender, disp *sender.Dispatcher) {
	n.mu.Lock()
	n.api, n.disp = api, disp
	n.mu.Unlock()
}

// Detach stops delivery; later notifications fail with ErrNotAttached.
func (n *Notifier) Detach() {
	n.Attach(nil, nil)
}

// OrderPaid sends the course materials.
func (n *Notifier) OrderPaid(ctx context.Context, chatID int64, o domain.Order) error {
	return n.send(ctx, chatID, "notify.paid", PaidText(o))
}

// OrderCancelled tells the buyer the payment did not go through.
func (n *Notifier) OrderCancelled(ctx context.Context, chatID int64, o domain.Order) error {
	return n.send(ctx, chatID, "notify.cancelled", CancelledText(o))
}

func (n *Notifier) send(ctx context.Context, chatID int64, action, text string) error {
	n.mu.RLock()
	api, disp := n.api, n.disp
	n.mu.RUnlock()
	if api == nil {
		return ErrNotAttached
	}

	run := func() error {
		_, err := api.Send(tele.ChatID(chatID), text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		return err
	}
	if disp == nil {
		return run()
	}

	// The job outlives the webhook request that triggered it.
	jobCtx := context.WithoutCancel(ctx)
	err := disp.Enqueue(jobCtx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.ComponentNotify, "queue.fallback",
			slog.String("action", action),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
