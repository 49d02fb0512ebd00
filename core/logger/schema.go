package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Component names used across the bot. Keep them stable: dashboards filter on them.
const (
	ComponentApp      = "app"
	ComponentDB       = "db"
	ComponentMigrate  = "db.migrate"
	ComponentSeed     = "db.seed"
	ComponentTG       = "tg"
	ComponentTGWire   = "tg.wire"
	ComponentSender   = "tg.sender"
	ComponentShop     = "tg.shop"
	ComponentAdmin    = "tg.admin"
	ComponentNotify   = "tg.notify"
	ComponentCatalog  = "service.catalog"
	ComponentCart     = "service.cart"
	ComponentUsers    = "service.users"
	ComponentLedger   = "service.ledger"
	ComponentCheckout = "service.checkout"
	ComponentGateway  = "payment.gateway"
	ComponentWebhook  = "webhook"
	ComponentWeb      = "webhook.http"
	ComponentEvents   = "events"
)

// enumFields lists the fields restricted to a known vocabulary. Values are
// lower-cased; a value outside the set is dropped.
var enumFields = map[string]map[string]struct{}{
	"status": set("ok", "fail", "skip", "retry", "rate_limited", "cancelled"),
	"outcome": set(
		"ok", "fail", "cancelled", "rate_limited",
		"applied", "duplicate", "unknown_payment", "ignored", "rejected", "mismatch",
	),
	"order_status":   set("pending", "paid", "cancelled"),
	"payment_status": set("pending", "succeeded", "canceled"),
}

// secretKeys are masked whatever their value; keys ending in _token,
// _secret or _password are masked too.
var secretKeys = set("token", "secret", "secret_key", "password", "authorization", "dsn")

const masked = "***"

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func levelName(level string) string {
	switch strings.ToLower(level) {
	case "", "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return strings.ToUpper(level)
}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	if i := strings.LastIndexByte(k, '.'); i >= 0 {
		k = k[i+1:]
	}
	if _, ok := secretKeys[k]; ok {
		return true
	}
	return strings.HasSuffix(k, "_token") || strings.HasSuffix(k, "_secret") || strings.HasSuffix(k, "_password")
}

// defaultKeyOrder puts correlation and domain ids first; anything else
// follows alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"op", "cb_key", "outcome", "duration_ms",
	"order_id", "order_status", "payment_id", "external_id", "payment_status",
	"webhook_event", "course_id", "items", "amount", "currency", "duplicate",
	"count", "payload", "username",
	"mode", "listen", "addr", "public_url", "method", "path", "http_code",
	"db", "host", "port",
	"err", "err_code", "retryable", "attempts", "backoff_ms",
}
