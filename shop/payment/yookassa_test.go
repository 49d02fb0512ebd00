package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coursebot/shop/domain"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *YooKassa {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{
		ShopID:    "shop",
		SecretKey: "secret",
		APIURL:    srv.URL,
		ReturnURL: "https://bot.example.com/",
	}
	require.NoError(t, cfg.Normalize())
	return NewYooKassa(cfg, srv.Client())
}

func TestCreateIntentRequestShape(t *testing.T) {
	var got ykCreateRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, IdempotenceKey(42), r.Header.Get("Idempotence-Key"))

		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		_, _ = io.WriteString(w, `{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example/c/1"}}`)
	})

	intent, err := gw.CreateIntent(context.Background(), IntentRequest{
		OrderID:     42,
		Amount:      decimal.RequireFromString("2500"),
		Description: "Courses: Go basics, Go concurrency",
	})
	require.NoError(t, err)
	assert.Equal(t, Intent{ExternalID: "pay-1", RedirectURL: "https://pay.example/c/1"}, intent)

	assert.Equal(t, "2500.00", got.Amount.Value)
	assert.Equal(t, "RUB", got.Amount.Currency)
	assert.True(t, got.Capture)
	assert.Equal(t, "redirect", got.Confirmation.Type)
	assert.Equal(t, "https://bot.example.com/payment/success?order_id=42", got.Confirmation.ReturnURL)
	assert.Equal(t, "42", got.Metadata["order_id"])
}

func TestCreateIntentProviderError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","code":"invalid_request","description":"bad amount"}`)
	})

	_, err := gw.CreateIntent(context.Background(), IntentRequest{OrderID: 1, Amount: decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusBadRequest, gerr.HTTPStatus)
	assert.Equal(t, "invalid_request", gerr.Reason)
	assert.Equal(t, "gateway", gerr.Code())
}

func TestCreateIntentMissingConfirmation(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"pay-1","status":"pending"}`)
	})
	_, err := gw.CreateIntent(context.Background(), IntentRequest{OrderID: 1, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrGateway)
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := gw.CreateIntent(context.Background(), IntentRequest{OrderID: 1, Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFetchStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/payments/pay-7", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotence-Key"))
		_, _ = io.WriteString(w, `{"id":"pay-7","status":"succeeded","paid":true,"amount":{"value":"1500.00","currency":"RUB"},"metadata":{"order_id":"9"}}`)
	})

	st, err := gw.FetchStatus(context.Background(), "pay-7")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, st.Status)
	assert.True(t, st.Paid)
	assert.True(t, st.Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "9", st.OrderID)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, domain.PaymentSucceeded, mapStatus("succeeded"))
	assert.Equal(t, domain.PaymentCanceled, mapStatus("canceled"))
	assert.Equal(t, domain.PaymentPending, mapStatus("waiting_for_capture"))
	assert.Equal(t, domain.PaymentPending, mapStatus("pending"))
}

func TestIdempotenceKeyIsStablePerOrder(t *testing.T) {
	assert.Equal(t, IdempotenceKey(5), IdempotenceKey(5))
	assert.NotEqual(t, IdempotenceKey(5), IdempotenceKey(6))
}

func TestDescriptionTruncatesRunes(t *testing.T) {
	long := strings.Repeat("ж", 200)
	assert.Equal(t, 128, len([]rune(Description(long))))
	assert.Equal(t, "short", Description("short"))
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{ShopID: "s", SecretKey: "k", Currency: "usd"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	assert.Error(t, (&Config{}).Normalize())
	assert.Error(t, (&Config{ShopID: "s", SecretKey: "k", Currency: "rubles"}).Normalize())
	assert.Error(t, (&Config{ShopID: "s", SecretKey: "k", ReturnURL: "not a url"}).Normalize())
}
