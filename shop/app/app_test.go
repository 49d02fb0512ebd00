package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/coursebot/core/telegram"
	"github.com/m3rciful/coursebot/shop/bot"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/events"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/webhook"

	tele "gopkg.in/telebot.v4"
)

type stubGateway struct{}

func (stubGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	return payment.Intent{ExternalID: "pay", RedirectURL: "https://pay.example"}, nil
}

func (stubGateway) FetchStatus(_ context.Context, id string) (payment.RemoteStatus, error) {
	return payment.RemoteStatus{ExternalID: id}, nil
}

const seed = `courses:
  - title: Go basics
    price: "1000"
    material_url: https://example.com/a
`

func testDeps() Deps {
	return Deps{
		Gateway:    stubGateway{},
		Publisher:  events.NopPublisher{},
		LoggerInit: func(*Config) error { return nil },
	}
}

func newTestApp(t *testing.T, seedBody string) *App {
	t.Helper()
	cfg, err := Load(writeConfig(t, memoryYAML))
	require.NoError(t, err)
	if seedBody != "" {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(seedBody), 0o600))
		cfg.Catalog.SeedFile = path
	}

	a, err := New(cfg, testDeps())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil, testDeps())
	assert.Error(t, err)
}

func TestNewFailsOnBrokenSeed(t *testing.T) {
	cfg, err := Load(writeConfig(t, memoryYAML))
	require.NoError(t, err)
	cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err = New(cfg, testDeps())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog seed")
}

func TestTelegramRunOptions(t *testing.T) {
	a := newTestApp(t, seed)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, &a.cfg.Config, opts.Config)
	assert.Equal(t, tele.ModeHTML, opts.ParseMode)
	assert.NotEmpty(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)

	for _, name := range []string{"start", "catalog", "cart", "mycourses", "admin", "paystatus"} {
		_, _, ok := opts.Registry.Lookup(name)
		assert.True(t, ok, name)
	}
	var visible []string
	for _, c := range opts.Registry.Menu() {
		visible = append(visible, c.Text)
	}
	assert.Contains(t, visible, "catalog")
	assert.NotContains(t, visible, "admin")
	assert.NotContains(t, visible, "cancel")
}

func TestNotifierLifecycle(t *testing.T) {
	a := newTestApp(t, "")
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, opts.OnStart(ctx, tg.Runtime{}))

	b, err := tele.NewBot(tele.Settings{Token: "t", Offline: true})
	require.NoError(t, err)
	require.NoError(t, opts.OnStart(ctx, tg.Runtime{Bot: b}))
	require.NoError(t, opts.OnStop(ctx, tg.Runtime{Bot: b}))

	err = a.Notifier().OrderPaid(ctx, 1, domain.Order{ID: 1})
	assert.ErrorIs(t, err, bot.ErrNotAttached)
}

func TestServicesAndWebhook(t *testing.T) {
	a := newTestApp(t, seed)

	services := a.Services()
	require.Len(t, services, 1)
	assert.Equal(t, "webhook-http", services[0].Name())

	body := `{"type":"notification","event":"payment.succeeded","object":{"id":"nobody","status":"succeeded"}}`
	req := httptest.NewRequest(http.MethodPost, webhook.PathNotification, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown_payment", rec.Header().Get("X-Webhook-Outcome"))
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestApp(t, "")
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
