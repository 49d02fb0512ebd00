// Package telegram assembles and runs a telebot bot: the poller, the
// middleware chain, the routes built from a Registry and the outgoing
// message dispatcher.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/netutil"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint: a "/command" or a tele.On* constant.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describe the bot RunTelegram runs.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher carries plain sends; nil builds one from DispatcherOptions.
	Dispatcher        *sender.Dispatcher
	DispatcherOptions sender.Options

	Middlewares []Middleware
	Routes      []Route

	// ParseMode is the default for every outgoing message.
	ParseMode tele.ParseMode

	// KeepWebhook leaves a registered webhook alone in longpoll mode.
	KeepWebhook bool

	// OnStart runs once the bot is built, before updates flow. An error aborts the run.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs after updates stopped, before the dispatcher drains.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to work with.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *sender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is done.
// Cancellation is a clean stop, not an error.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.Bot.Start()
	}()
	select {
	case <-ctx.Done():
		rt.Bot.Stop()
		<-done
	case <-done:
	}

	if opts.OnStop != nil {
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

func build(ctx context.Context, opts RunOptions) (Runtime, error) {
	cfg := opts.Config
	started := time.Now()
	poller, mode := newPoller(cfg)

	bot, err := tele.NewBot(tele.Settings{
		Token:     cfg.Telegram.Token,
		Poller:    poller,
		Client:    netutil.BuildHTTPClient(netutil.ClientOptions{}),
		ParseMode: opts.ParseMode,
		OnError:   botErrorLogger(cfg.Telegram.Token),
	})
	if err != nil {
		return Runtime{}, errors.New("telegram: bot init: " + redactToken(err.Error(), cfg.Telegram.Token))
	}

	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll && !opts.KeepWebhook {
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, logger.ComponentTG, "webhook.remove",
				slog.String("status", "fail"),
				slog.String("err", redactToken(err.Error(), cfg.Telegram.Token)),
			)
		}
	}

	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
			names = append(names, mw.Name)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	publishMenu(bot, opts.Registry)

	disp := opts.Dispatcher
	if disp == nil {
		disp = sender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(disp)

	chain, _ := logger.SummarizeStrings(names, 8)
	logger.Info(ctx, logger.ComponentTG, "bot.built", append(mode,
		slog.String("bot", bot.Me.Username),
		slog.String("middlewares", chain),
		slog.Int("routes", len(opts.Routes)),
		slog.Duration("duration", logger.RoundMS(time.Since(started))),
	)...)
	return Runtime{Bot: bot, Dispatcher: disp, Registry: opts.Registry}, nil
}

// botErrorLogger reports poller failures and the handler errors telebot
// surfaces. Request URLs in those errors carry the token.
func botErrorLogger(token string) func(error, tele.Context) {
	return func(err error, c tele.Context) {
		ctx := logger.Background()
		if c != nil {
			ctx = tghelpers.Ctx(c)
		}
		logger.Warn(ctx, logger.ComponentTG, "bot.error",
			slog.String("err", logger.SanitizeLimit(redactToken(err.Error(), token), 256)),
		)
	}
}

func redactToken(msg, token string) string {
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "<redacted>")
}
