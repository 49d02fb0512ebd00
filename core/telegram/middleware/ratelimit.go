package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const defaultIdleTTL = 30 * time.Minute

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Every is the sustained pace per user. Zero disables limiting.
	Every time.Duration
	// Burst is how many updates may arrive back to back. Below 1 means 1.
	Burst int
	// Exclude lists update kinds (see UpdateKind) that are never limited.
	Exclude []string
	// IdleTTL forgets users quiet for that long. Zero means 30 minutes.
	IdleTTL time.Duration
	// OnLimited answers a throttled update.
	OnLimited tele.HandlerFunc

	now func() time.Time
}

// UpdateKind names the update type the way rate_limit.exclude_updates does.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return coreconfig.UpdateCallback
	case u.Message != nil:
		return coreconfig.UpdateMessage
	case u.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiters keeps a token bucket per user and sweeps idle ones.
type limiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	users     map[int64]*userLimiter
	nextSweep time.Time
}

func (l *limiters) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for id, u := range l.users {
			if now.Sub(u.seen) > l.ttl {
				delete(l.users, id)
			}
		}
		l.nextSweep = now.Add(l.ttl)
	}

	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.seen = now
	return u.lim.AllowN(now, 1)
}

func (l *limiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// RateLimit throttles each user to opts.Every with opts.Burst headroom.
// Throttled updates are answered with OnLimited and never reach next.
func RateLimit(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Every <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	return newRateLimit(opts, nil)
}

func newRateLimit(opts RateLimitOptions, set **limiters) tele.MiddlewareFunc {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	skip := make(map[string]bool, len(opts.Exclude))
	for _, k := range opts.Exclude {
		skip[k] = true
	}
	l := &limiters{
		limit: rate.Every(opts.Every),
		burst: opts.Burst,
		ttl:   opts.IdleTTL,
		users: make(map[int64]*userLimiter),
	}
	if set != nil {
		*set = l
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			u := c.Sender()
			if u == nil || skip[UpdateKind(c.Update())] {
				return next(c)
			}
			if l.allow(u.ID, opts.now()) {
				return next(c)
			}
			logger.Warn(tghelpers.Ctx(c), logger.ComponentTG, "update.throttled",
				slog.String("status", "rate_limited"),
				slog.String("kind", UpdateKind(c.Update())),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
