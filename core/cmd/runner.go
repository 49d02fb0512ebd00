// Package cmd is the process entry point shared by bots built on core: it
// resolves the config file, bootstraps the app and runs the bot next to the
// app's services until a signal arrives or one of them fails.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/logger"
	coretelegram "github.com/m3rciful/coursebot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is an app config embedding the core sections.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the bot runtime options.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Service runs next to the bot, e.g. an HTTP server.
// Run blocks until ctx is done or the service fails.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceHost is implemented by apps that run services next to the bot.
type ServiceHost interface {
	Services() []Service
}

// Options configure Run. LoadConfig and Bootstrap are required.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// ShutdownLogger defaults to logger.Shutdown.
	ShutdownLogger func() error
	// RunTelegram defaults to telegram.RunTelegram.
	RunTelegram func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	if p := strings.TrimSpace(os.Getenv(env)); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: no config path in $%s and no default", env)
}

// Run executes the whole process lifecycle. The app is closed after the bot
// and every service have returned.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}

	path, err := opts.configPath()
	if err != nil {
		return err
	}
	// The structured logger does not exist before bootstrap.
	log.Printf("config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", path, err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return errors.New("cmd: config carries no core section")
	}

	startedAt := time.Now()
	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}

	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		closeApp(app)
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	var services []Service
	if host, ok := app.(ServiceHost); ok {
		services = host.Services()
	}

	runErr := runAll(ctx, cancel, services, func(ctx context.Context) error {
		return run(ctx, runOpts)
	})
	closeApp(app)
	return runErr
}

// withLifecycleLogs chains app.ready after OnStart and app.shutdown before
// OnStop.
func withLifecycleLogs(opts *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.ComponentApp, "app.ready",
			slog.Duration("startup", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.ComponentApp, "app.shutdown",
			slog.Duration("uptime", logger.RoundMS(time.Since(startedAt))),
		)
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}

func closeApp(app TelegramApp) {
	c, ok := app.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn(logger.Background(), logger.ComponentApp, "app.close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// runAll runs the bot and every service until one of them returns. The first
// failure cancels the rest and is reported once all of them stopped.
func runAll(ctx context.Context, cancel context.CancelFunc, services []Service, bot func(context.Context) error) error {
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	record := func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			once.Do(func() { first = err })
		}
	}

	for _, svc := range services {
		if svc == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, logger.ComponentApp, "service.stop",
					slog.String("service", svc.Name()),
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				record(fmt.Errorf("cmd: service %s: %w", svc.Name(), err))
			}
		}()
	}

	record(bot(ctx))
	cancel()
	wg.Wait()
	return first
}
