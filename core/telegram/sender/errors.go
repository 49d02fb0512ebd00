package sender

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/m3rciful/coursebot/core/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// retryDelay decides whether err is transient and how long to wait before
// attempt+1. Flood control dictates its own wait.
func retryDelay(err error, attempt int, backoff time.Duration) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return backoff * time.Duration(attempt), apiErr.Code >= 500
	}
	return backoff * time.Duration(attempt), netutil.ShouldRetry(err)
}

func errorKind(err error) string {
	var flood tele.FloodError
	var apiErr *tele.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		return "http_4xx"
	case netutil.ShouldRetry(err):
		return "network"
	}
	return "unknown"
}

// redact hides bot tokens that HTTP errors carry in request URLs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
