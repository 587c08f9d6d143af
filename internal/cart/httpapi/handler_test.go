package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/cart/app"
	"github.com/dwikikusuma/marketplace-core/internal/cart/domain"
)

type memRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func (r *memRepo) Get(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, app.ErrNotFound
	}
	return c, nil
}

func (r *memRepo) Update(_ context.Context, userID string, fn func(*domain.Cart) error) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.carts[userID]
	c.UserID = userID
	if err := fn(&c); err != nil {
		return domain.Cart{}, err
	}
	r.carts[userID] = c
	return c, nil
}

func newRouter() http.Handler {
	h := NewHandler(app.NewService(&memRepo{carts: map[string]domain.Cart{}}), nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithCaller(r.Context(), auth.Caller{ID: "u-1", Role: auth.RoleUser})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/api/cart", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, cartDTO) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out cartDTO
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestCartFlow(t *testing.T) {
	h := newRouter()

	rec, cart := do(t, h, http.MethodGet, "/api/cart/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cart.Items)

	rec, cart = do(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []itemDTO{{ProductID: "p1", Quantity: 2}}, cart.Items)

	rec, cart = do(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(3), cart.Items[0].Quantity)

	rec, cart = do(t, h, http.MethodPut, "/api/cart/items/p1", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(5), cart.Items[0].Quantity)

	rec, cart = do(t, h, http.MethodDelete, "/api/cart/items/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cart.Items)
}

func TestCartAddOverflow(t *testing.T) {
	h := newRouter()

	rec, _ := do(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":2147483647}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, cart := do(t, h, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []itemDTO{{ProductID: "p1", Quantity: 2147483647}}, cart.Items)
}

func TestCartErrors(t *testing.T) {
	h := newRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"zero quantity", http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":0}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/cart/items", `{"product":"p1"}`, http.StatusBadRequest},
		{"negative set", http.MethodPut, "/api/cart/items/p1", `{"quantity":-1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
