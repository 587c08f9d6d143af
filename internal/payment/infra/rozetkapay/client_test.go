package rozetkapay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/marketplace-core/internal/payment/app"
)

var fastRetry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

var sessionReq = app.SessionRequest{
	AmountMinor: 2000,
	Currency:    "UAH",
	ExternalID:  "pay-1",
	Description: "Order o-1",
	CallbackURL: "https://shop.example/api/payments/callback",
}

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, Login: "merchant", Password: "s3cret", Retry: fastRetry})
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/new", r.URL.Path)

		login, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "merchant", login)
		assert.Equal(t, "s3cret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(2000), body["amount"])
		assert.Equal(t, "UAH", body["currency"])
		assert.Equal(t, "pay-1", body["external_id"])
		assert.Equal(t, "https://shop.example/api/payments/callback", body["callback_url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"rz-77","action":{"type":"url","value":"https://pay.example/c/1"}}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).CreateSession(context.Background(), sessionReq)
	require.NoError(t, err)
	assert.Equal(t, app.Session{ProviderID: "rz-77", CheckoutURL: "https://pay.example/c/1"}, s)
}

func TestCreateSessionRetries(t *testing.T) {
	t.Run("5xx then success", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"id":"rz-1","action":{"value":"https://pay.example"}}`))
		}))
		defer srv.Close()

		s, err := newTestClient(srv.URL).CreateSession(context.Background(), sessionReq)
		require.NoError(t, err)
		assert.Equal(t, "rz-1", s.ProviderID)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("429 is retried until attempts run out", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateSession(context.Background(), sessionReq)
		assert.ErrorIs(t, err, app.ErrGateway)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"message":"bad credentials"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateSession(context.Background(), sessionReq)
		assert.ErrorIs(t, err, app.ErrGateway)
		assert.ErrorContains(t, err, "401")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("garbage body is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateSession(context.Background(), sessionReq)
		assert.ErrorIs(t, err, app.ErrGateway)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestCreateSessionTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Options{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		Retry:   RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 1},
	})

	start := time.Now()
	_, err := c.CreateSession(context.Background(), sessionReq)
	assert.ErrorIs(t, err, app.ErrGateway)
	assert.Less(t, time.Since(start), 2*time.Second)
}
