// Package logger is the structured slog setup shared by the bot, the
// services and the payment webhook server.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/coursebot/core/buildinfo"
	coreconfig "github.com/m3rciful/coursebot/core/config"
)

const serviceName = "coursebot"

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	out     *asyncWriter
	files   []io.Closer
	level   slog.LevelVar
	sampler debugSampler
	trace   bool

	// L is the base logger. Prefer the context-first helpers (Info, Warn, ...).
	L *slog.Logger

	// TG is attached to every update context.
	TG *slog.Logger
)

func init() {
	// Until InitLogger runs (tests, tooling) everything goes nowhere.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
	sampler.set(1, 50)
	scopeComponents()
}

// settings is the logging section resolved to concrete values.
type settings struct {
	format      logFormat
	level       slog.Level
	keyOrder    []string
	sampleKeep  int
	sampleEvery int
	profile     string
	file        string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{format: formatJSON, level: slog.LevelInfo, keyOrder: defaultKeyOrder, sampleKeep: 1, sampleEvery: 50, profile: "prod"}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
	case "kv", "text", "pretty":
		s.format = formatKV
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.keyOrder = order
		}
	}

	if keep, every, ok := parseSampleSpec(lc.DebugSample); ok {
		s.sampleKeep, s.sampleEvery = keep, every
	}

	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.File); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

// InitLogger installs the structured logger. Only the first call has effect;
// a configured log file that cannot be opened is an error.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolve(cfg)
		level.Set(s.level)
		sampler.set(s.sampleKeep, s.sampleEvery)
		trace = envFlag("LOG_TRACE") || envFlag("TRACE")

		outputs := []io.Writer{os.Stdout}
		if s.file != "" {
			f, openErr := openLogFile(s.file)
			if openErr != nil {
				err = fmt.Errorf("logger: open %s: %w", s.file, openErr)
				return
			}
			outputs = append(outputs, f)
			files = append(files, f)
		}
		out = newAsyncWriter(outputs, 64<<10)

		L = slog.New(newHandler(handlerOptions{
			level:    &level,
			out:      out,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		scopeComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", ComponentApp),
			slog.String("event", "startup"),
			slog.String("service", serviceName),
			slog.String("version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("go_version", runtime.Version()),
			slog.String("cfg_profile", s.profile),
			slog.String("format", string(s.format)),
		)
	})
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func scopeComponents() {
	TG = L.With("component", ComponentTG)
}

// Shutdown flushes queued lines and closes the log file. It is safe to call twice.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Flush(), out.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background is the context for code that runs outside any update or request.
func Background() context.Context {
	return context.Background()
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes event through logg, falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(orBackground(ctx), lvl, "", attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether the next high-volume debug line should
// be written. LOG_TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return trace || sampler.allow()
}
