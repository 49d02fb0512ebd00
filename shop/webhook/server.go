package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
)

// Routes served by Server.
const (
	PathNotification = "/webhook/yookassa"
	PathSuccess      = "/payment/success"
	PathHealth       = "/healthz"
)

const (
	defaultListen          = ":8080"
	defaultRequestTimeout  = 10 * time.Second
	defaultBodyLimit       = "64K"
	defaultShutdownTimeout = 5 * time.Second
)

// ServerConfig is the `server` section of the app config.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	// PublicURL is where the provider and buyers reach this server.
	PublicURL      string        `yaml:"public_url" envconfig:"PUBLIC_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"HTTP_REQUEST_TIMEOUT"`
	BodyLimit      string        `yaml:"body_limit" envconfig:"HTTP_BODY_LIMIT"`
	// VerifyRemote confirms every notification with the provider API before settling.
	VerifyRemote bool `yaml:"verify_remote" envconfig:"WEBHOOK_VERIFY_REMOTE"`
}

// Normalize fills defaults.
func (c *ServerConfig) Normalize() error {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.BodyLimit == "" {
		c.BodyLimit = defaultBodyLimit
	}
	return nil
}

// Handler is the part of the Reconciler the HTTP layer needs.
type Handler interface {
	Handle(ctx context.Context, body []byte) (Outcome, error)
}

// Server exposes the notification endpoint and the buyer landing page.
type Server struct {
	cfg     ServerConfig
	echo    *echo.Echo
	handler Handler
}

// NewServer builds the echo instance and its routes.
func NewServer(cfg ServerConfig, h Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURIPath:  true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("http_code", v.Status),
				slog.Duration("duration", logger.RoundMS(v.Latency)),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
				logger.Warn(c.Request().Context(), logger.ComponentWeb, "http.request", attrs...)
				return nil
			}
			logger.Debug(c.Request().Context(), logger.ComponentWeb, "http.request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: cfg.RequestTimeout}))

	s := &Server{cfg: cfg, echo: e, handler: h}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET(PathHealth, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.echo.GET(PathSuccess, s.success)
	s.echo.POST(PathNotification, s.notification)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) notification(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "unreadable body")
	}

	outcome, err := s.handler.Handle(ctx, body)
	switch {
	case errors.Is(err, domain.ErrMalformedPayload):
		return c.String(http.StatusBadRequest, "malformed notification")
	case err != nil:
		logger.Error(ctx, logger.ComponentWebhook, "webhook.fail", slog.String("err", err.Error()))
		return c.String(http.StatusInternalServerError, "retry later")
	}
	c.Response().Header().Set("X-Webhook-Outcome", outcome.String())
	return c.String(http.StatusOK, "OK")
}

func (s *Server) success(c echo.Context) error {
	msg := "Thank you! Payment is being processed; the bot will send your courses as soon as it is confirmed."
	if id := c.QueryParam("order_id"); id != "" {
		msg = fmt.Sprintf("Thank you! Order #%s is being processed; the bot will send your courses as soon as the payment is confirmed.", sanitizeOrderID(id))
	}
	return c.String(http.StatusOK, msg)
}

func sanitizeOrderID(id string) string {
	for _, r := range id {
		if r < '0' || r > '9' {
			return "?"
		}
	}
	if len(id) > 19 {
		return "?"
	}
	return id
}

// Name implements cmd.Service.
func (s *Server) Name() string { return "webhook-http" }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.ComponentWeb, "http.listen", slog.String("addr", s.cfg.Listen))
		errCh <- s.echo.Start(s.cfg.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown: %w", err)
	}
	logger.Info(ctx, logger.ComponentWeb, "http.stopped")
	return nil
}
