package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares is the chain every update passes, outermost first:
// panic recovery, the update context, per-user throttling, reply counting.
// onLimited answers throttled updates.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{
		{Name: "recover", Use: middleware.Recover},
		{Name: "trace", Use: middleware.Trace},
	}
	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimit(middleware.RateLimitOptions{
				Every:     time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Burst:     cfg.RateLimit.Burst,
				Exclude:   cfg.RateLimit.ExcludeUpdates,
				OnLimited: onLimited,
			}),
		})
	}
	return append(chain, Middleware{Name: "count", Use: middleware.Count})
}
