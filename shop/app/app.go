// Package app wires the storefront: storage, services, the Telegram bot and
// the payment webhook server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/coursebot/core/bootstrap"
	"github.com/m3rciful/coursebot/core/cmd"
	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/logger"
	tg "github.com/m3rciful/coursebot/core/telegram"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/shop/bot"
	"github.com/m3rciful/coursebot/shop/cart"
	"github.com/m3rciful/coursebot/shop/catalog"
	"github.com/m3rciful/coursebot/shop/checkout"
	"github.com/m3rciful/coursebot/shop/events"
	"github.com/m3rciful/coursebot/shop/ledger"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/stats"
	"github.com/m3rciful/coursebot/shop/store/memstore"
	"github.com/m3rciful/coursebot/shop/store/postgres"
	"github.com/m3rciful/coursebot/shop/users"
	"github.com/m3rciful/coursebot/shop/webhook"

	tele "gopkg.in/telebot.v4"
)

const textRateLimited = "Too many requests, please slow down."

// repositories is one storage backend seen through the service interfaces.
type repositories struct {
	catalog catalog.Repository
	users   users.Repository
	ledger  ledger.Store
	carts   cart.Store
	stats   stats.Source
}

func memoryRepositories(st *memstore.Store) repositories {
	return repositories{
		catalog: st.Catalog(),
		users:   st.Users(),
		ledger:  st.Ledger(),
		carts:   st.Carts(),
		stats:   st.Stats(),
	}
}

func postgresRepositories(st *postgres.Store) repositories {
	return repositories{
		catalog: st.Catalog(),
		users:   st.Users(),
		ledger:  st.Ledger(),
		carts:   st.Carts(),
		stats:   st.Stats(),
	}
}

// App is the assembled storefront.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	events   events.Publisher
	bot      *bot.Bot
	notifier *bot.Notifier
	server   *webhook.Server
}

// Deps lets tests replace the infrastructure Bootstrap would otherwise dial.
type Deps struct {
	// DB is used instead of the bootstrap connection when set.
	DB *sqlx.DB
	// Gateway replaces the YooKassa client.
	Gateway payment.Gateway
	// Publisher replaces the RabbitMQ publisher.
	Publisher events.Publisher
	// LoggerInit replaces logger.InitLogger.
	LoggerInit func(*Config) error
}

// Bootstrap runs the core bootstrap pipeline and builds the app.
func Bootstrap(cfg *Config) (*App, error) {
	return New(cfg, Deps{})
}

// New builds the app from cfg, dialling only what deps does not provide.
func New(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	memory := cfg.Storage.Driver == DriverMemory
	opts := bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		NoDatabase: memory || deps.DB != nil,
	}
	if deps.LoggerInit != nil {
		opts.LoggerInit = func(*coreconfig.Config) error { return deps.LoggerInit(cfg) }
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB}
	if deps.DB != nil {
		a.db = deps.DB
	}

	var repos repositories
	if memory {
		repos = memoryRepositories(memstore.New())
	} else {
		repos = postgresRepositories(postgres.New(a.db))
	}
	if cfg.Cart.Backend == DriverMemory {
		repos.carts = cart.NewMemoryStore()
	}

	ctx := logger.Background()
	if err := bootstrap.RunSeeders(ctx, repos.catalog, catalog.Seeder(cfg.Catalog.SeedFile)); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.events = deps.Publisher
	if a.events == nil {
		if a.events, err = newPublisher(cfg.Events); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	gw := deps.Gateway
	if gw == nil {
		gw = payment.NewYooKassa(cfg.Payment, nil)
	}

	catalogSvc := catalog.NewService(repos.catalog)
	usersSvc := users.NewService(repos.users)
	ledgerSvc := ledger.NewService(repos.ledger)
	cartSvc := cart.NewService(repos.carts)

	a.notifier = bot.NewNotifier()
	a.bot = bot.New(bot.Deps{
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Users:    usersSvc,
		Checkout: checkout.New(usersSvc, cartSvc, ledgerSvc, gw, a.events),
		Stats:    stats.NewService(repos.stats),
		Gateway:  gw,
		Currency: cfg.Payment.Currency,
		IsAdmin:  cfg.Telegram.IsAdmin,
	}, state.NewMemoryManager())

	reconcilerOpts := []webhook.Option{
		webhook.WithNotifier(usersSvc, a.notifier),
		webhook.WithPublisher(a.events),
	}
	if cfg.Server.VerifyRemote {
		reconcilerOpts = append(reconcilerOpts, webhook.WithRemoteVerification(gw))
	}
	a.server = webhook.NewServer(cfg.Server, webhook.NewReconciler(ledgerSvc, reconcilerOpts...))

	logger.Info(ctx, logger.ComponentApp, "app.wired",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("cart", cfg.Cart.Backend),
		slog.Bool("events", cfg.Events.AMQPURL != ""),
		slog.Bool("verify_remote", cfg.Server.VerifyRemote),
		slog.Int("admins", len(cfg.Telegram.AdminIDs)),
	)
	return a, nil
}

func newPublisher(cfg EventsConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("app: events: %w", err)
	}
	return pub, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	return tg.RunOptions{
		Config:    &a.cfg.Config,
		Registry:  reg,
		ParseMode: tele.ModeHTML,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, func(c tele.Context) error {
			return tghelpers.Toast(c, textRateLimited)
		}),
		Routes: a.bot.Routes(reg),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			if rt.Bot == nil {
				return errors.New("app: runtime without bot")
			}
			a.notifier.Attach(rt.Bot, rt.Dispatcher)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			a.notifier.Detach()
			return nil
		},
	}, nil
}

// Services implements cmd.ServiceHost.
func (a *App) Services() []cmd.Service {
	return []cmd.Service{a.server}
}

// Handler exposes the webhook server for in-process use.
func (a *App) Handler() *webhook.Server { return a.server }

// Notifier exposes the buyer notifier.
func (a *App) Notifier() *bot.Notifier { return a.notifier }

// Close releases the event publisher and the database. cmd.Run calls it
// once the bot and the webhook server have stopped.
func (a *App) Close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
		a.events = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	return errors.Join(errs...)
}
