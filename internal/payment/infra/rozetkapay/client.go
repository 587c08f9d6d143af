// Package rozetkapay is the HTTP client for the RozetkaPay hosted checkout API.
package rozetkapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-core/internal/payment/app"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
)

const DefaultBaseURL = "https://api.rozetkapay.com/api/payments/v1"

type Options struct {
	BaseURL  string
	Login    string
	Password string
	Timeout  time.Duration
	Retry    RetryConfig
	Logger   *slog.Logger
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	login      string
	password   string
	httpClient *http.Client
	retry      RetryConfig
	log        *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		login:      opts.Login,
		password:   opts.Password,
		httpClient: hc,
		retry:      opts.Retry,
		log:        logger.OrDiscard(opts.Logger),
	}
}

type newPaymentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ExternalID  string `json:"external_id"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type newPaymentResponse struct {
	ID     string `json:"id"`
	Action struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"action"`
}

// CreateSession implements app.Gateway. Transport errors, 429 and 5xx are
// retried with backoff; any other non-2xx answer fails immediately.
func (c *Client) CreateSession(ctx context.Context, req app.SessionRequest) (app.Session, error) {
	body, err := json.Marshal(newPaymentRequest{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		ExternalID:  req.ExternalID,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return app.Session{}, fmt.Errorf("marshal request: %w", err)
	}

	attempt := 0
	resp, err := retryWithBackoff(ctx, c.retry, func() (newPaymentResponse, error) {
		attempt++
		out, err := c.post(ctx, "/new", body)
		if err != nil {
			c.log.WarnContext(ctx, "rozetkapay call failed",
				slog.String("external_id", req.ExternalID),
				slog.Int("attempt", attempt),
				slog.Any("err", err))
		}
		return out, err
	})
	if err != nil {
		return app.Session{}, fmt.Errorf("%w: %v", app.ErrGateway, err)
	}

	return app.Session{ProviderID: resp.ID, CheckoutURL: resp.Action.Value}, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (newPaymentResponse, error) {
	var out newPaymentResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return out, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.login, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return out, apiErr
		}
		return out, permanent(apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, permanent(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}
