// Package config holds the settings every bot built on core shares: the
// Telegram connection, logging and update throttling. Apps embed Config and
// add their own sections.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// TelegramConfig is the bot connection.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminIDs is the allow-list of admin Telegram user ids; ADMIN_IDS=1,2.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	// RunMode is longpoll (default) or webhook.
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds is the getUpdates timeout; 0 means 10.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// IsAdmin reports whether userID is on the allow-list. An empty list grants nobody.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	if userID <= 0 {
		return false
	}
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *TelegramConfig) normalize() error {
	t.Token = strings.TrimSpace(t.Token)
	if t.Token == "" {
		return errors.New("telegram token is required")
	}
	switch mode := strings.ToLower(strings.TrimSpace(t.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = mode
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	if t.LongPollTimeoutSeconds < 0 {
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}
	for _, id := range t.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("telegram.admin_ids must contain positive user ids, got %d", id)
		}
	}
	return nil
}

// WebhookConfig is how Telegram delivers updates in webhook mode. It is
// unrelated to the payment notifications an app may receive.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

func (w WebhookConfig) validate() error {
	switch {
	case strings.TrimSpace(w.URL) == "":
		return errors.New("webhook.url is required in webhook mode")
	case strings.TrimSpace(w.Listen) == "":
		return errors.New("webhook.listen is required in webhook mode")
	case w.Port <= 0:
		return errors.New("webhook.port must be > 0 in webhook mode")
	}
	return nil
}

// LoggingConfig drives core/logger.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// KeysOrder is a comma separated field order for the text format.
	KeysOrder string `yaml:"keys_order"`
	// DebugSample keeps 1 in N high-volume debug lines; "off" keeps all.
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	// Dir and File add a log file next to stdout.
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
	// Profile is "prod" or "debug"; debug defaults to the text format.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles each user to one update per IntervalMS with
// Burst updates of headroom.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst      int `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	// ExcludeUpdates lists update kinds that are never throttled:
	// callback, message, inline_query.
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 || r.Burst < 0 {
		return errors.New("rate_limit.interval_ms and rate_limit.burst must be >= 0")
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		switch k := strings.ToLower(strings.TrimSpace(v)); k {
		case "":
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			kinds = append(kinds, k)
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
	}
	r.ExcludeUpdates = kinds
	return nil
}

// Config is the core configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads a YAML file into dst, then overlays the environment. dst is
// usually an app config embedding Config.
func Load(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Telegram.normalize(); err != nil {
		return err
	}
	if cfg.Telegram.RunMode == RunModeWebhook {
		if err := cfg.Webhook.validate(); err != nil {
			return err
		}
	}
	return cfg.RateLimit.normalize()
}
