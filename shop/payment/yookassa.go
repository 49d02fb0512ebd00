package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/netutil"
	"github.com/m3rciful/coursebot/shop/domain"
)

const (
	defaultAPIURL      = "https://api.yookassa.ru"
	defaultCurrency    = "RUB"
	defaultTimeout     = 15 * time.Second
	maxDescriptionRune = 128
	maxErrorBody       = 4 << 10
)

// idempotencySpace namespaces the idempotency keys derived from order ids.
var idempotencySpace = uuid.MustParse("6f1c0b52-7a0e-4c64-9d0f-4e2f8f3b9a11")

// Config holds the YooKassa credentials and request defaults.
type Config struct {
	ShopID    string `yaml:"shop_id" envconfig:"YOOKASSA_SHOP_ID"`
	SecretKey string `yaml:"secret_key" envconfig:"YOOKASSA_SECRET"`
	APIURL    string `yaml:"api_url" envconfig:"YOOKASSA_API_URL"`
	Currency  string `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
	// ReturnURL is the public base URL the buyer comes back to after paying;
	// /payment/success?order_id=N is appended.
	ReturnURL string        `yaml:"return_url" envconfig:"PAYMENT_RETURN_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"PAYMENT_TIMEOUT"`
}

// Normalize validates credentials and fills defaults.
func (c *Config) Normalize() error {
	c.ShopID = strings.TrimSpace(c.ShopID)
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	if c.ShopID == "" || c.SecretKey == "" {
		return fmt.Errorf("payment.shop_id and payment.secret_key are required")
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("payment.currency must be an ISO 4217 code, got %q", c.Currency)
	}
	c.ReturnURL = strings.TrimRight(strings.TrimSpace(c.ReturnURL), "/")
	if c.ReturnURL != "" {
		u, err := url.Parse(c.ReturnURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("payment.return_url must be an absolute URL, got %q", c.ReturnURL)
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// YooKassa is the Gateway backed by the YooKassa REST API v3.
type YooKassa struct {
	cfg  Config
	http *http.Client
}

// NewYooKassa builds a client. Pass a nil httpClient to get the retrying
// client from core/netutil.
func NewYooKassa(cfg Config, httpClient *http.Client) *YooKassa {
	if httpClient == nil {
		httpClient = netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: cfg.Timeout})
	}
	return &YooKassa{cfg: cfg, http: httpClient}
}

// IdempotenceKey derives the request key for an order. Retries of one
// checkout reuse it; a new order always gets a new one.
func IdempotenceKey(orderID int64) string {
	return uuid.NewSHA1(idempotencySpace, []byte(strconv.FormatInt(orderID, 10))).String()
}

// Description truncates s to what the provider accepts.
func Description(s string) string {
	if utf8.RuneCountInString(s) <= maxDescriptionRune {
		return s
	}
	return string([]rune(s)[:maxDescriptionRune])
}

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type ykCreateRequest struct {
	Amount       ykAmount          `json:"amount"`
	Confirmation ykConfirmation    `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type ykPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       ykAmount          `json:"amount"`
	Confirmation *ykConfirmation   `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

type ykError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreateIntent implements Gateway.
func (y *YooKassa) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	const op = "create payment"
	if !req.Amount.IsPositive() {
		return Intent{}, domain.Invalid("amount", "must be positive")
	}

	body := ykCreateRequest{
		Amount: ykAmount{
			Value:    req.Amount.StringFixed(2),
			Currency: y.cfg.Currency,
		},
		Confirmation: ykConfirmation{
			Type:      "redirect",
			ReturnURL: y.returnURL(req.OrderID),
		},
		Capture:     true,
		Description: Description(req.Description),
		Metadata:    map[string]string{"order_id": strconv.FormatInt(req.OrderID, 10)},
	}
	key := IdempotenceKey(req.OrderID)

	var out ykPayment
	if err := y.do(ctx, op, http.MethodPost, "/v3/payments", key, body, &out); err != nil {
		return Intent{}, err
	}
	if out.ID == "" || out.Confirmation == nil || out.Confirmation.ConfirmationURL == "" {
		return Intent{}, &GatewayError{Op: op, Message: "response lacks payment id or confirmation url"}
	}

	logger.Info(ctx, logger.ComponentGateway, "payment.intent",
		slog.Int64("order_id", req.OrderID),
		slog.String("external_id", out.ID),
		slog.String("amount", body.Amount.Value),
	)
	return Intent{ExternalID: out.ID, RedirectURL: out.Confirmation.ConfirmationURL}, nil
}

// FetchStatus implements Gateway.
func (y *YooKassa) FetchStatus(ctx context.Context, externalID string) (RemoteStatus, error) {
	const op = "get payment"
	if strings.TrimSpace(externalID) == "" {
		return RemoteStatus{}, domain.Invalid("external_id", "must not be empty")
	}

	var out ykPayment
	if err := y.do(ctx, op, http.MethodGet, "/v3/payments/"+url.PathEscape(externalID), "", nil, &out); err != nil {
		return RemoteStatus{}, err
	}
	amount, err := decimal.NewFromString(out.Amount.Value)
	if err != nil && out.Amount.Value != "" {
		return RemoteStatus{}, &GatewayError{Op: op, Message: "bad amount " + out.Amount.Value}
	}
	return RemoteStatus{
		ExternalID: out.ID,
		Status:     mapStatus(out.Status),
		Raw:        out.Status,
		Amount:     amount,
		Paid:       out.Paid,
		OrderID:    out.Metadata["order_id"],
	}, nil
}

// mapStatus folds the provider statuses into ours. waiting_for_capture never
// happens with capture=true and counts as pending.
func mapStatus(s string) domain.PaymentStatus {
	switch s {
	case "succeeded":
		return domain.PaymentSucceeded
	case "canceled":
		return domain.PaymentCanceled
	}
	return domain.PaymentPending
}

func (y *YooKassa) returnURL(orderID int64) string {
	if y.cfg.ReturnURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/payment/success?order_id=%d", y.cfg.ReturnURL, orderID)
}

func (y *YooKassa) do(ctx context.Context, op, method, path, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &GatewayError{Op: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.cfg.APIURL+path, body)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(y.cfg.ShopID, y.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotence-Key", idemKey)
	}

	start := time.Now()
	resp, err := y.http.Do(req)
	if err != nil {
		logger.Warn(ctx, logger.ComponentGateway, "gateway.fail",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug(ctx, logger.ComponentGateway, "gateway.call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gerr := &GatewayError{Op: op, HTTPStatus: resp.StatusCode}
		var ye ykError
		if json.Unmarshal(raw, &ye) == nil && ye.Code != "" {
			gerr.Reason, gerr.Message = ye.Code, ye.Description
		} else {
			gerr.Message = logger.SanitizeLimit(string(raw), 200)
		}
		logger.Warn(ctx, logger.ComponentGateway, "gateway.reject",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_code", resp.StatusCode),
			slog.String("err_code", gerr.Reason),
		)
		return gerr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Op: op, HTTPStatus: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}
