package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutapp "github.com/dwikikusuma/marketplace-core/internal/checkout/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/postgres"
)

// openTestDB connects to TEST_DATABASE_URL and skips when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, postgres.Config{URL: url, MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.ApplyMigrations(ctx, db))
	return db
}

func TestToCartItems(t *testing.T) {
	got := toCartItems([]checkoutapp.CartItem{{ProductID: "p1", Quantity: 2}})
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.Equal(t, int32(2), got[0].Quantity)
}

func TestPlaceOrderTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepo(db)

	userID := "u-" + uuid.NewString()
	productID := "p-" + uuid.NewString()

	_, err := db.ExecContext(ctx, `INSERT INTO products (id, name, price) VALUES ($1, 'Widget', 10)`, productID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO carts (user_id, items) VALUES ($1, $2)`,
		userID, `[{"product_id":"`+productID+`","quantity":2}]`)
	require.NoError(t, err)

	snapshot := []checkoutapp.CartItem{{ProductID: productID, Quantity: 2}}
	order := domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         []domain.OrderItem{{ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(10), Name: "Widget"}},
		Shipping:      domain.ShippingAddress{FullName: "Ann", Phone: "1", City: "Kyiv", Address: "Main 1"},
		Status:        domain.StatusPending,
		PaymentMethod: "cash",
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      decimal.NewFromInt(20),
		ShippingCost:  decimal.Zero,
		Total:         decimal.NewFromInt(20),
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("changed cart is rejected", func(t *testing.T) {
		_, err := repo.PlaceOrderTx(ctx, order, []checkoutapp.CartItem{{ProductID: productID, Quantity: 1}})
		assert.ErrorIs(t, err, checkoutapp.ErrCartChanged)
	})

	t.Run("places once", func(t *testing.T) {
		_, err := repo.PlaceOrderTx(ctx, order, snapshot)
		require.NoError(t, err)

		stored, err := repo.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.Total.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, order.Items[0].Name, stored.Items[0].Name)

		var sales int64
		require.NoError(t, db.QueryRowContext(ctx, `SELECT sales_count FROM products WHERE id = $1`, productID).Scan(&sales))
		assert.Equal(t, int64(2), sales)

		second := order
		second.ID = uuid.NewString()
		_, err = repo.PlaceOrderTx(ctx, second, snapshot)
		assert.ErrorIs(t, err, checkoutapp.ErrEmptyCart)
	})

	t.Run("status updates follow the policy", func(t *testing.T) {
		policy := domain.ForwardOnly{}
		allow := func(to domain.Status) func(domain.Status) error {
			return func(from domain.Status) error { return policy.Allow(from, to) }
		}

		o, err := repo.UpdateStatus(ctx, order.ID, domain.StatusDelivered, allow(domain.StatusDelivered))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, o.Status)
		require.NotNil(t, o.UpdatedAt)

		_, err = repo.UpdateStatus(ctx, order.ID, domain.StatusPending, allow(domain.StatusPending))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = repo.UpdateStatus(ctx, "missing", domain.StatusShipped, allow(domain.StatusShipped))
		assert.ErrorIs(t, err, app.ErrNotFound)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
}
